package response

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// ErrNotAcceptable is returned by Negotiate when the client accepts none of
// the media types the API produces.
var ErrNotAcceptable = errors.New("Client MUST accept: " + MediaJSON + ", " + MediaMsgpack)

var offers = []string{MediaJSON, MediaMsgpack}

type acceptRange struct {
	typ, sub string
	q        float64
}

// Negotiate picks the response media type from the Accept header. A missing
// header means JSON. Among offers with equal quality JSON wins.
func Negotiate(r *http.Request) (string, error) {
	header := strings.TrimSpace(strings.Join(r.Header.Values("Accept"), ","))
	if header == "" {
		return MediaJSON, nil
	}

	ranges := parseAccept(header)

	best, bestQ := "", 0.0
	for _, offer := range offers {
		if q := quality(offer, ranges); q > bestQ {
			best, bestQ = offer, q
		}
	}
	if best == "" {
		return "", ErrNotAcceptable
	}
	return best, nil
}

func parseAccept(header string) []acceptRange {
	var out []acceptRange
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		typ, sub, ok := strings.Cut(mt, "/")
		if !ok {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 && f <= 1 {
				q = f
			}
		}
		out = append(out, acceptRange{typ: typ, sub: sub, q: q})
	}
	return out
}

// quality returns the q of the most specific range matching offer.
func quality(offer string, ranges []acceptRange) float64 {
	typ, sub, _ := strings.Cut(offer, "/")

	q, specificity := 0.0, -1
	for _, r := range ranges {
		s := -1
		switch {
		case r.typ == typ && r.sub == sub:
			s = 2
		case r.typ == typ && r.sub == "*":
			s = 1
		case r.typ == "*" && r.sub == "*":
			s = 0
		}
		if s > specificity {
			q, specificity = r.q, s
		}
	}
	return q
}
