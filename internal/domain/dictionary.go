package domain

// Dictionary types known to the registry import.
const (
	DictPravnaForma        = "pravna_forma"
	DictSkNace             = "sk_nace"
	DictDruhVlastnictva    = "druh_vlastnictva"
	DictVelkostOrganizacie = "velkost_organizacie"
	DictKraj               = "kraj"
	DictOkres              = "okres"
	DictSidlo              = "sidlo"
	DictZdrojDat           = "zdroj_dat"
)

// DictionaryEntry maps a registry classification code to its labels. (Type, Code) is unique.
type DictionaryEntry struct {
	ID     int64   `db:"id" json:"id"`
	Type   string  `db:"type" json:"type"`
	Code   string  `db:"code" json:"code"`
	NameSk string  `db:"name_sk" json:"nameSk"`
	NameEn *string `db:"name_en" json:"nameEn,omitempty"`
}

// Label is the human readable form of a code.
type Label struct {
	Sk *string `json:"sk"`
	En *string `json:"en"`
}

// Decoded is a code with its label. Label is nil when the code is unknown.
type Decoded struct {
	Code  string `json:"code"`
	Label *Label `json:"label"`
}

// DecodedCompany is a read view of a Company with classification codes resolved.
type DecodedCompany struct {
	ICO                  string   `json:"ico"`
	NazovUJ              string   `json:"nazovUJ"`
	PravnaForma          *Decoded `json:"pravnaForma"`
	SkNace               *Decoded `json:"skNace"`
	VelkostOrganizacie   *Decoded `json:"velkostOrganizacie"`
	DruhVlastnictva      *Decoded `json:"druhVlastnictva"`
	Kraj                 *Decoded `json:"kraj"`
	Okres                *Decoded `json:"okres"`
	Sidlo                *Decoded `json:"sidlo"`
	ZdrojDat             *Decoded `json:"zdrojDat"`
	DatumZalozenia       *string  `json:"datumZalozenia"`
	DatumPoslednejUpravy *string  `json:"datumPoslednejUpravy"`
}
