package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// call sends a request to the node and prints the JSON response. A response
// with a status outside of the 2xx range is returned as an error after the
// body is printed.
func call(ctx context.Context, method string, path string, header map[string]string, dataSend any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := strings.TrimSuffix(url, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("constructing request: %w", err)
	}
	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	logrus.WithFields(logrus.Fields{"method": method, "url": endpoint}).Debug("sending request")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling node: %w", err)
	}
	defer resp.Body.Close()

	logrus.WithField("status", resp.StatusCode).Debug("received response")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := printJSON(raw); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("node responded with status %d", resp.StatusCode)
	}

	return nil
}

func printJSON(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, err := os.Stdout.Write(raw)
		return err
	}
	out.WriteByte('\n')

	_, err := out.WriteTo(os.Stdout)
	return err
}
