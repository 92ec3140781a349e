// Package model contains domain models passed between layers.
package model

import "time"

// Stats holds the four combat attributes of a character, each in [0,100].
type Stats struct {
	Strength     int `json:"strength" msgpack:"strength"`
	Speed        int `json:"speed" msgpack:"speed"`
	Intelligence int `json:"intelligence" msgpack:"intelligence"`
	Charisma     int `json:"charisma" msgpack:"charisma"`
}

// Character is a playable crypto asset. Characters are never mutated after
// creation; battles reference them by ID.
type Character struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Symbol      string    `json:"symbol" msgpack:"symbol"`
	Rank        int       `json:"rank" msgpack:"rank"`
	Price       float64   `json:"price" msgpack:"price"`
	MarketCap   float64   `json:"market_cap" msgpack:"market_cap"`
	Stats       Stats     `json:"stats" msgpack:"stats"`
	Color       string    `json:"color" msgpack:"color"`
	Description string    `json:"description" msgpack:"description"`
	Image       string    `json:"image,omitempty" msgpack:"image,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty" msgpack:"last_updated,omitempty"`
}

// MarketRecord is the raw per-asset record handed over by a market-data
// provider. Pointer fields are optional upstream.
type MarketRecord struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	CurrentPrice  float64    `json:"current_price"`
	MarketCap     float64    `json:"market_cap"`
	TotalVolume   float64    `json:"total_volume"`
	MarketCapRank int        `json:"market_cap_rank"`
	Categories    []string   `json:"categories,omitempty"`
	GenesisDate   string     `json:"genesis_date,omitempty"`
	Description   string     `json:"description,omitempty"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}
