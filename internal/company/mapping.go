package company

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

// field copies one registry detail key onto a Company. apply is total: a value
// that does not parse leaves the target nil.
type field struct {
	key   string
	apply func(c *domain.Company, v gjson.Result)
}

var detailFields = []field{
	{key: "dic", apply: func(c *domain.Company, v gjson.Result) { c.DIC = parseString(v) }},
	{key: "sid", apply: func(c *domain.Company, v gjson.Result) { c.SID = parseString(v) }},
	{key: "nazovUJ", apply: func(c *domain.Company, v gjson.Result) {
		if s := parseString(v); s != nil {
			c.NazovUJ = *s
		}
	}},
	{key: "mesto", apply: func(c *domain.Company, v gjson.Result) { c.Mesto = parseString(v) }},
	{key: "ulica", apply: func(c *domain.Company, v gjson.Result) { c.Ulica = parseString(v) }},
	{key: "psc", apply: func(c *domain.Company, v gjson.Result) { c.PSC = parseString(v) }},
	{key: "datumZalozenia", apply: func(c *domain.Company, v gjson.Result) { c.DatumZalozenia = parseDate(v) }},
	{key: "datumZrusenia", apply: func(c *domain.Company, v gjson.Result) { c.DatumZrusenia = parseDate(v) }},
	{key: "pravnaForma", apply: func(c *domain.Company, v gjson.Result) { c.PravnaForma = parseString(v) }},
	{key: "skNace", apply: func(c *domain.Company, v gjson.Result) { c.SkNace = parseString(v) }},
	{key: "velkostOrganizacie", apply: func(c *domain.Company, v gjson.Result) { c.VelkostOrganizacie = parseString(v) }},
	{key: "druhVlastnictva", apply: func(c *domain.Company, v gjson.Result) { c.DruhVlastnictva = parseString(v) }},
	{key: "kraj", apply: func(c *domain.Company, v gjson.Result) { c.Kraj = parseString(v) }},
	{key: "okres", apply: func(c *domain.Company, v gjson.Result) { c.Okres = parseString(v) }},
	{key: "sidlo", apply: func(c *domain.Company, v gjson.Result) { c.Sidlo = parseString(v) }},
	{key: "konsolidovana", apply: func(c *domain.Company, v gjson.Result) { c.Konsolidovana = parseBool(v) }},
	{key: "idUctovnychZavierok", apply: func(c *domain.Company, v gjson.Result) { c.IDUctovnychZavierok = parseIntList(v) }},
	{key: "idVyrocnychSprav", apply: func(c *domain.Company, v gjson.Result) { c.IDVyrocnychSprav = parseIntList(v) }},
	{key: "zdrojDat", apply: func(c *domain.Company, v gjson.Result) { c.ZdrojDat = parseString(v) }},
	{key: "datumPoslednejUpravy", apply: func(c *domain.Company, v gjson.Result) { c.DatumPoslednejUpravy = parseDate(v) }},
}

// mapDetail builds a Company from a registry detail document.
func mapDetail(detail []byte) *domain.Company {
	doc := gjson.ParseBytes(detail)

	c := &domain.Company{}
	for _, f := range detailFields {
		v := doc.Get(f.key)
		if !v.Exists() {
			continue
		}
		f.apply(c, v)
	}

	return c
}

func parseString(v gjson.Result) *string {
	switch v.Type {
	case gjson.String, gjson.Number:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return nil
		}
		return &s
	default:
		return nil
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDate(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}

	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}

// parseBool accepts JSON booleans and the usual textual forms. Null and
// unrecognised values give nil.
func parseBool(v gjson.Result) *bool {
	var b bool
	switch v.Type {
	case gjson.True:
		b = true
	case gjson.False:
		b = false
	case gjson.Number:
		switch v.Num {
		case 1:
			b = true
		case 0:
			b = false
		default:
			return nil
		}
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.String())) {
		case "1", "true", "yes", "on":
			b = true
		case "0", "false", "no", "off", "":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}

	return &b
}

func parseIntList(v gjson.Result) []int64 {
	if !v.IsArray() {
		return nil
	}

	items := v.Array()
	out := make([]int64, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case gjson.Number:
			out = append(out, item.Int())
		case gjson.String:
			n, err := strconv.ParseInt(strings.TrimSpace(item.String()), 10, 64)
			if err != nil {
				n = 0
			}
			out = append(out, n)
		default:
			out = append(out, 0)
		}
	}

	return out
}
