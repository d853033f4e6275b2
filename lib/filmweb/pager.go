package filmweb

import (
	"context"

	"github.com/goccy/go-json"
)

// pager drains a paged list endpoint. path builds the request path for a
// 1-based page number. Iteration ends when a page decodes to an empty
// JSON array or to anything that is not an array; a non-array page is a
// termination signal, not an error.
type pager struct {
	client *Client
	path   func(page int) string
	page   int
}

func newPager(client *Client, path func(page int) string) *pager {
	return &pager{client: client, path: path, page: 1}
}

// next fetches the next page. done is true once the endpoint is drained;
// the final call returns no items.
func (p *pager) next(ctx context.Context) (items []json.RawMessage, done bool, err error) {
	body, err := p.client.Fetch(ctx, p.path(p.page), true)
	if err != nil {
		return nil, false, err
	}
	if body == nil {
		return nil, true, nil
	}
	if err := json.Unmarshal(body, &items); err != nil {
		// Not a list: the endpoint has nothing more to say.
		return nil, true, nil
	}
	if len(items) == 0 {
		return nil, true, nil
	}
	p.page++
	return items, false, nil
}

// all concatenates every page into one slice.
func (p *pager) all(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for {
		items, done, err := p.next(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
		out = append(out, items...)
	}
}
