package types

// Platform represents a gaming platform from RomM.
type Platform struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	RomCount int    `json:"rom_count"`
}
