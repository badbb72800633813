package romm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"romm-autosync/constants"
	"romm-autosync/types"
)

// romFields is the field projection for bulk fetches; it keeps server work
// (and payloads) small.
const romFields = "id,name,fs_name,platform_name,platform_slug,files,multi"

// FetchProgress carries the progressive-UI callbacks for a full catalog fetch.
// Either callback may be nil.
type FetchProgress struct {
	// PageDone fires once per completed page with running counters.
	PageDone func(pagesDone, totalPages, totalItems int)
	// BatchDone fires after each batch with the accumulated list so far.
	BatchDone func(games []types.Game)
}

// romPage decodes either a bare array or the paginated {items,total} envelope;
// the server has shipped both shapes across versions.
func decodeRomPage(raw json.RawMessage) ([]types.Game, int, error) {
	var pageItems []types.Game
	if err := json.Unmarshal(raw, &pageItems); err == nil {
		return pageItems, len(pageItems), nil
	}
	var paginated struct {
		Items []types.Game `json:"items"`
		Total int          `json:"total"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, 0, fmt.Errorf("failed to parse roms response: unknown format")
	}
	return paginated.Items, paginated.Total, nil
}

// GetRomCount returns the server's total ROM count via a field-restricted
// limit=1 request. The result is cached for 30 s since full syncs probe it
// repeatedly.
func (c *Client) GetRomCount(ctx context.Context) (int, error) {
	c.countMu.Lock()
	if time.Since(c.countFetched) < constants.CountCacheTTL && c.cachedCount > 0 {
		count := c.cachedCount
		c.countMu.Unlock()
		return count, nil
	}
	c.countMu.Unlock()

	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/roms?limit=1&fields=id", &raw); err != nil {
		return 0, err
	}
	_, total, err := decodeRomPage(raw)
	if err != nil {
		return 0, err
	}

	c.countMu.Lock()
	c.cachedCount = total
	c.countFetched = time.Now()
	c.countMu.Unlock()
	return total, nil
}

// fetchRomPage fetches one projection-limited page. A failed page yields an
// empty list rather than aborting the whole run.
func (c *Client) fetchRomPage(ctx context.Context, limit, offset int) []types.Game {
	path := fmt.Sprintf("/api/roms?limit=%d&offset=%d&fields=%s", limit, offset, romFields)
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		c.log.Warn("rom page fetch failed", "offset", offset, "error", err)
		return nil
	}
	items, _, err := decodeRomPage(raw)
	if err != nil {
		c.log.Warn("rom page parse failed", "offset", offset, "error", err)
		return nil
	}
	return items
}

// FetchAllRoms pulls the whole catalog: chunks of 500, fetched in batches of
// 2 pages with up to 4 concurrent requests, streaming completed pages through
// an append buffer into the result list.
func (c *Client) FetchAllRoms(ctx context.Context, progress *FetchProgress) ([]types.Game, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	total, err := c.GetRomCount(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	totalPages := (total + constants.FetchChunkSize - 1) / constants.FetchChunkSize
	sem := semaphore.NewWeighted(constants.FetchMaxParallel)

	var (
		result    []types.Game
		buffer    []types.Game
		pagesDone int
	)
	flush := func() {
		if len(buffer) > 0 {
			result = append(result, buffer...)
			buffer = buffer[:0]
		}
	}

	for batchStart := 0; batchStart < totalPages; batchStart += constants.FetchBatchPages {
		batchEnd := batchStart + constants.FetchBatchPages
		if batchEnd > totalPages {
			batchEnd = totalPages
		}

		pages := make([][]types.Game, batchEnd-batchStart)
		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				return result, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			wg.Add(1)
			go func(page int) {
				defer wg.Done()
				defer sem.Release(1)
				pages[page-batchStart] = c.fetchRomPage(ctx, constants.FetchChunkSize, page*constants.FetchChunkSize)
			}(i)
		}
		wg.Wait()

		for _, items := range pages {
			pagesDone++
			buffer = append(buffer, items...)
			if len(buffer) >= constants.FetchAppendBuffer {
				flush()
			}
			if progress != nil && progress.PageDone != nil {
				progress.PageDone(pagesDone, totalPages, len(result)+len(buffer))
			}
		}

		flush()
		if progress != nil && progress.BatchDone != nil {
			progress.BatchDone(result)
		}
	}

	return result, nil
}

// GetRomsUpdatedAfter returns a single filtered page of ROMs changed since ts.
func (c *Client) GetRomsUpdatedAfter(ctx context.Context, ts time.Time) ([]types.Game, error) {
	path := fmt.Sprintf("/api/roms?limit=%d&fields=%s&updated_after=%s",
		constants.FetchChunkSize, romFields, url.QueryEscape(ts.UTC().Format(time.RFC3339)))
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodeRomPage(raw)
	return items, err
}

// GetRomsByCollection lists the members of a collection.
func (c *Client) GetRomsByCollection(ctx context.Context, collectionID uint) ([]types.Game, error) {
	var result []types.Game
	offset := 0
	for {
		path := fmt.Sprintf("/api/roms?collection_id=%d&limit=%d&offset=%d&fields=%s",
			collectionID, constants.FetchChunkSize, offset, romFields)
		var raw json.RawMessage
		if err := c.getJSON(ctx, path, &raw); err != nil {
			return nil, err
		}
		items, _, err := decodeRomPage(raw)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		result = append(result, items...)
		if len(items) < constants.FetchChunkSize {
			break
		}
		offset += len(items)
	}
	return result, nil
}

// GetCollections lists the server's collections.
func (c *Client) GetCollections(ctx context.Context) ([]types.Collection, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/collections", &raw); err != nil {
		return nil, err
	}
	var collections []types.Collection
	if err := json.Unmarshal(raw, &collections); err == nil {
		return collections, nil
	}
	var paginated struct {
		Items []types.Collection `json:"items"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, fmt.Errorf("failed to parse collections response: unknown format")
	}
	return paginated.Items, nil
}

// GetRom fetches a single ROM with its user saves and states.
func (c *Client) GetRom(ctx context.Context, id uint) (types.RomDetails, error) {
	var details types.RomDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/api/roms/%d", id), &details); err != nil {
		return types.RomDetails{}, err
	}
	return details, nil
}

// DownloadRomFile streams a ROM's content. The caller owns the reader. Multi
// file games come down as a ZIP archive of the whole fileset.
func (c *Client) DownloadRomFile(ctx context.Context, id uint, fileName string) (io.ReadCloser, int64, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, 0, err
	}
	path := fmt.Sprintf("/api/roms/%d/content/%s", id, url.PathEscape(fileName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create download request: %w", err)
	}
	c.applyAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}
	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("server returned an HTML error page for %s", fileName)
	}
	return resp.Body, resp.ContentLength, nil
}
