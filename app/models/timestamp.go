package models

import (
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// NaiveTimeLayout renders timestamps in UTC without a zone suffix.
const NaiveTimeLayout = "2006-01-02T15:04:05.999999"

// NaiveTime is a UTC timestamp that serialises without a timezone:
// "2021-01-01T00:00:00" in JSON and a native timestamp in msgpack.
type NaiveTime struct {
	time.Time
}

func naive(t *time.Time) *NaiveTime {
	if t == nil {
		return nil
	}
	return &NaiveTime{Time: t.UTC()}
}

func (t NaiveTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(NaiveTimeLayout) + `"`), nil
}

func (t *NaiveTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := time.Parse(NaiveTimeLayout, s)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}

var (
	_ msgpack.CustomEncoder = NaiveTime{}
	_ msgpack.CustomDecoder = (*NaiveTime)(nil)
)

func (t NaiveTime) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeTime(t.UTC())
}

func (t *NaiveTime) DecodeMsgpack(dec *msgpack.Decoder) error {
	tm, err := dec.DecodeTime()
	if err != nil {
		return err
	}
	t.Time = tm.UTC()
	return nil
}
