package polymarket

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yanboishere/MetaOdds/internal/collectors"
)

// eventsPage accepts the three shapes Gamma has served /events in:
// a bare array, {"events": [...]} and {"data": [...]}.
type eventsPage []event

func (p *eventsPage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var evs []event
		if err := json.Unmarshal(data, &evs); err != nil {
			return err
		}
		*p = evs
		return nil
	}
	var wrapped struct {
		Events []event `json:"events"`
		Data   []event `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Events != nil {
		*p = wrapped.Events
	} else {
		*p = wrapped.Data
	}
	return nil
}

type event struct {
	ID           collectors.FlexString `json:"id"`
	Slug         string                `json:"slug"`
	EventSlug    string                `json:"event_slug"`
	Title        string                `json:"title"`
	Question     string                `json:"question"`
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	EndDateISO   string                `json:"end_date_iso"`
	EventEndDate string                `json:"event_end_date"`
	EndDate      string                `json:"endDate"`
	Tags         tagList               `json:"tags"`
	Markets      []market              `json:"markets"`
}

type market struct {
	ID                 collectors.FlexString              `json:"id"`
	MarketSlug         string                             `json:"market_slug"`
	Slug               string                             `json:"slug"`
	ConditionID        string                             `json:"condition_id"`
	ConditionIDCamel   string                             `json:"conditionId"`
	Title              string                             `json:"title"`
	Question           string                             `json:"question"`
	Description        string                             `json:"description"`
	Category           string                             `json:"category"`
	EndDateISO         string                             `json:"end_date_iso"`
	EndDate            string                             `json:"endDate"`
	GameStartTime      string                             `json:"game_start_time"`
	GameStartTimeCamel string                             `json:"gameStartTime"`
	Closed             flexBool                           `json:"closed"`
	Tokens             []token                            `json:"tokens"`
	Outcomes           embeddedList[string]               `json:"outcomes"`
	OutcomePrices      embeddedList[collectors.FlexFloat] `json:"outcomePrices"`
	Volume24hr         collectors.FlexFloat               `json:"volume24hr"`
	Volume1wk          collectors.FlexFloat               `json:"volume1wk"`
}

type token struct {
	TokenID string               `json:"token_id"`
	Outcome string               `json:"outcome"`
	Price   collectors.FlexFloat `json:"price"`
}

// tagList takes plain strings or Gamma tag objects ({"label": ..., "slug": ...}).
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Label string `json:"label"`
			Slug  string `json:"slug"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			if label := collectors.FirstNonEmpty(obj.Label, obj.Slug); label != "" {
				out = append(out, label)
			}
		}
	}
	*t = out
	return nil
}

// embeddedList decodes either a JSON array or a string holding a JSON array,
// which is how Gamma ships outcomes and outcomePrices. Garbage decodes to nil.
type embeddedList[T any] []T

func (l *embeddedList[T]) UnmarshalJSON(data []byte) error {
	*l = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			return nil
		}
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	*l = out
	return nil
}

// flexBool unmarshals from a JSON bool or a "true"/"false" string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = false
		return nil
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}
