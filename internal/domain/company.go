package domain

import "time"

// Company is the registry snapshot attached to a user. Classification fields hold raw
// registry codes; Decoded views are built on read. A company is never updated after creation.
type Company struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"userId"`
	RuzID                *int64     `json:"ruzId,omitempty"`
	ICO                  string     `json:"ico"`
	DIC                  *string    `json:"dic,omitempty"`
	SID                  *string    `json:"sid,omitempty"`
	NazovUJ              string     `json:"nazovUJ"`
	Mesto                *string    `json:"mesto,omitempty"`
	Ulica                *string    `json:"ulica,omitempty"`
	PSC                  *string    `json:"psc,omitempty"`
	DatumZalozenia       *time.Time `json:"datumZalozenia,omitempty"`
	DatumZrusenia        *time.Time `json:"datumZrusenia,omitempty"`
	PravnaForma          *string    `json:"pravnaForma,omitempty"`
	SkNace               *string    `json:"skNace,omitempty"`
	VelkostOrganizacie   *string    `json:"velkostOrganizacie,omitempty"`
	DruhVlastnictva      *string    `json:"druhVlastnictva,omitempty"`
	Kraj                 *string    `json:"kraj,omitempty"`
	Okres                *string    `json:"okres,omitempty"`
	Sidlo                *string    `json:"sidlo,omitempty"`
	Konsolidovana        *bool      `json:"konsolidovana,omitempty"`
	IDUctovnychZavierok  []int64    `json:"idUctovnychZavierok,omitempty"`
	IDVyrocnychSprav     []int64    `json:"idVyrocnychSprav,omitempty"`
	ZdrojDat             *string    `json:"zdrojDat,omitempty"`
	DatumPoslednejUpravy *time.Time `json:"datumPoslednejUpravy,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}
