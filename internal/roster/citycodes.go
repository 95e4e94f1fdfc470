package roster

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// UgandaCityCodes maps the three-letter location codes used in
// registration numbers to the town they stand for.
var UgandaCityCodes = map[string]string{
	"KLA": "Kampala",
	"MBA": "Mbarara",
	"EBB": "Entebbe",
	"JJA": "Jinja",
	"GUL": "Gulu",
	"MBL": "Mbale",
	"LIR": "Lira",
	"ARU": "Arua",
	"FPT": "Fort Portal",
	"MSK": "Masaka",
	"KBL": "Kabale",
	"HMA": "Hoima",
	"SRT": "Soroti",
	"MTY": "Mityana",
	"MKN": "Mukono",
	"WAK": "Wakiso",
	"TOR": "Tororo",
	"KSE": "Kasese",
	"BSH": "Bushenyi",
	"IGA": "Iganga",
	"MSD": "Masindi",
	"KTG": "Kitgum",
	"MRT": "Moroto",
	"NTG": "Ntungamo",
	"RKG": "Rukungiri",
	"LWR": "Luwero",
	"KMP": "Kampala",
}

// CityCodes expands location codes. The zero value is not usable; use
// DefaultCityCodes or LoadCityCodes.
type CityCodes struct {
	codes map[string]string
}

// DefaultCityCodes returns the built-in Uganda code table.
func DefaultCityCodes() *CityCodes {
	codes := make(map[string]string, len(UgandaCityCodes))
	for k, v := range UgandaCityCodes {
		codes[k] = v
	}
	return &CityCodes{codes: codes}
}

// LoadCityCodes reads a YAML mapping of code to town and layers it over
// the built-in table. Keys are upper-cased.
//
//	KLA: Kampala
//	NKZ: Nakaseke
func LoadCityCodes(r io.Reader) (*CityCodes, error) {
	var extra map[string]string
	if err := yaml.NewDecoder(r).Decode(&extra); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode city codes: %w", err)
	}

	cc := DefaultCityCodes()
	for k, v := range extra {
		k = strings.ToUpper(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		cc.codes[k] = v
	}
	return cc, nil
}

// Expand returns the town for a code, or the input unchanged (trimmed)
// when it is not a known code.
func (c *CityCodes) Expand(s string) string {
	s = strings.TrimSpace(s)
	if c == nil {
		return s
	}
	if town, ok := c.codes[strings.ToUpper(s)]; ok {
		return town
	}
	return s
}

// Len returns the number of known codes.
func (c *CityCodes) Len() int {
	if c == nil {
		return 0
	}
	return len(c.codes)
}
