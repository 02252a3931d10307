package models

// EntityStatus: Depo/raf/göz/malzeme/operatör kayıtları silinmez,
// sadece pasife alınır. Geçmiş hareketler referanslarını korur.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

func (s EntityStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}
