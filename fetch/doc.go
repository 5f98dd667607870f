// Package fetch issues cancellable HTTP GET requests for the response cache.
//
// A response is a success only when its status code is in [200,300). Every
// other outcome, including transport failures and cancellation, resolves as
// an error wrapping a *FetchError:
//
//	p := f.Fetch(ctx, "https://example.com/data.json")
//	defer p.Cancel()
//	body, err := p.Wait(ctx)
//	var fe *fetch.FetchError
//	if errors.As(err, &fe) {
//	    log.Printf("status %d", fe.StatusCode)
//	}
//
// Transport failures can optionally be retried with exponential backoff.
// Non-2xx responses are never retried. No timeout is imposed; cancellation is
// driven by the caller.
package fetch
