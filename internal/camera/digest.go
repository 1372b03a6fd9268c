package camera

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// doDigest performs the two-step MD5 digest handshake: an
// unauthenticated request to collect the WWW-Authenticate challenge,
// then the real request with the computed Authorization header.
// Snapshot fetches carry no body, so the replay is a plain re-issue.
func (c *Client) doDigest(ctx context.Context, method, rawURL, username, password string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	challenge := resp.Header.Get("WWW-Authenticate")
	resp.Body.Close()

	digest, err := parseDigestChallenge(challenge)
	if err != nil {
		// Not a digest camera after all; surface the 401 as-is by
		// re-issuing without credentials
		return c.http.Do(req.Clone(ctx))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	nc := "00000001"
	cnonce := randomHex(16)
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", username, digest.realm, password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, u.RequestURI()))
	response := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		ha1, digest.nonce, nc, cnonce, digest.qop, ha2,
	))

	authValue := fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm=MD5, response="%s", qop=%s, nc=%s, cnonce="%s"`,
		username,
		digest.realm,
		digest.nonce,
		u.RequestURI(),
		response,
		digest.qop,
		nc,
		cnonce,
	)

	req2, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req2.Header.Set("Authorization", authValue)

	return c.http.Do(req2)
}

type digestChallenge struct {
	realm string
	nonce string
	qop   string
}

var digestRx = regexp.MustCompile(`(\w+)="([^"]+)"`)

func parseDigestChallenge(h string) (*digestChallenge, error) {
	if !strings.HasPrefix(strings.ToLower(h), "digest ") {
		return nil, fmt.Errorf("WWW-Authenticate is not Digest: %q", h)
	}
	h = strings.TrimSpace(h[len("Digest "):])

	res := &digestChallenge{}
	for _, kv := range digestRx.FindAllStringSubmatch(h, -1) {
		if len(kv) != 3 {
			continue
		}
		switch strings.ToLower(kv[1]) {
		case "realm":
			res.realm = kv[2]
		case "nonce":
			res.nonce = kv[2]
		case "qop":
			res.qop = kv[2]
		}
	}
	if res.realm == "" || res.nonce == "" {
		return nil, fmt.Errorf("realm/nonce missing in WWW-Authenticate: %q", h)
	}
	if res.qop == "" {
		res.qop = "auth"
	}
	return res, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n)
	}
	return hex.EncodeToString(buf)
}
