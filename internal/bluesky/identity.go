package bluesky

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

const pdsServiceID = "#atproto_pds"

// ResolvePDS looks up the DID document for did in the PLC directory and
// derives the did:web audience of the account's personal data server.
// The result is memoized for the lifetime of the Client; resolution is
// deterministic per user within one attempt.
func (c *Client) ResolvePDS(ctx context.Context, did string) (string, error) {
	if aud, ok := c.pdsCache[did]; ok {
		return aud, nil
	}

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: "GET",
		URL:    c.cfg.PLCDirectory + "/" + url.PathEscape(did),
	})
	if err != nil {
		return "", &ResolutionError{DID: did, Reason: err.Error()}
	}
	if resp.Status != 200 {
		return "", &ResolutionError{DID: did, Reason: "directory returned status " + strconv.Itoa(resp.Status)}
	}

	var doc struct {
		Service []struct {
			ID              string `json:"id"`
			ServiceEndpoint string `json:"serviceEndpoint"`
		} `json:"service"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return "", &ResolutionError{DID: did, Reason: "malformed DID document: " + err.Error()}
	}

	for _, svc := range doc.Service {
		if svc.ID != pdsServiceID || svc.ServiceEndpoint == "" {
			continue
		}
		endpoint, err := url.Parse(svc.ServiceEndpoint)
		if err != nil || endpoint.Host == "" {
			return "", &ResolutionError{DID: did, Reason: "unparseable PDS service endpoint: " + svc.ServiceEndpoint}
		}
		aud := "did:web:" + endpoint.Host
		c.pdsCache[did] = aud
		c.log.Debug().Str("did", did).Str("audience", aud).Msg("Resolved PDS audience")
		return aud, nil
	}

	return "", &ResolutionError{DID: did, Reason: "DID document has no " + pdsServiceID + " service entry"}
}
