package catalogparser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/giygas/medcheck-api/logging"
	"golang.org/x/text/encoding/korean"
)

const maxCatalogFileSize = 32 * 1024 * 1024

// downloadFile fetches one bundle member. Files exported from Korean spreadsheet tools
// are often EUC-KR, so anything that is not valid UTF-8 is decoded as EUC-KR.
func downloadFile(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", url, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxCatalogFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if utf8.Valid(body) {
		return body, nil
	}

	decoded, err := korean.EUCKR.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as EUC-KR: %w", url, err)
	}
	logging.Debug(fmt.Sprintf("%s decoded from EUC-KR", url))
	return decoded, nil
}

// downloadBundle fetches all catalog files concurrently from baseURL
func downloadBundle(ctx context.Context, client *http.Client, baseURL string) (map[string][]byte, error) {
	base := strings.TrimRight(baseURL, "/")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	bundle := make(map[string][]byte, len(catalogFiles))

	for _, name := range catalogFiles {
		wg.Add(1)

		go func(name string) {
			defer wg.Done()
			content, err := downloadFile(ctx, client, base+"/"+name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			bundle[name] = content
		}(name)
	}
	wg.Wait()

	if len(errs) > 0 {
		logging.Error("Download errors occurred", "errors", errs)
		return nil, fmt.Errorf("download errors: %v", errs)
	}

	return bundle, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}
