package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OnlineStoreID is the directory entry for the online sales channel. It
// never appears in regional listings and is never disabled.
const OnlineStoreID int64 = 51100000

// Retailer is a lottery outlet from the official directory.
type Retailer struct {
	bun.BaseModel `bun:"table:retailers,alias:rt"`

	ID        int64   `bun:"id,pk" json:"id"`
	Enabled   bool    `bun:"enabled,notnull" json:"enabled"`
	Name      string  `bun:"name,notnull" json:"name"`
	Phone     string  `bun:"phone,notnull" json:"phone"`
	Addr1     string  `bun:"addr1,notnull" json:"addr1"`
	Addr2     string  `bun:"addr2,notnull" json:"addr2"`
	Addr3     string  `bun:"addr3,notnull" json:"addr3"`
	Addr4     string  `bun:"addr4,notnull" json:"addr4"`
	RoadAddr  string  `bun:"road_addr,notnull" json:"roadAddr"`
	Longitude float64 `bun:"longitude,notnull" json:"longitude"`
	Latitude  float64 `bun:"latitude,notnull" json:"latitude"`
	Wins1     int     `bun:"wins1,notnull" json:"wins1"`
	Wins2     int     `bun:"wins2,notnull" json:"wins2"`

	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// Retailer columns written by directory updates.
const (
	ColName      = "name"
	ColPhone     = "phone"
	ColAddr1     = "addr1"
	ColAddr2     = "addr2"
	ColAddr3     = "addr3"
	ColAddr4     = "addr4"
	ColRoadAddr  = "road_addr"
	ColLongitude = "longitude"
	ColLatitude  = "latitude"
	ColEnabled   = "enabled"
	ColUpdatedAt = "updated_at"
)
