package roster

import "github.com/okian/cryptoheroes/internal/domain/model"

const placeholderImage = "/placeholder.svg"

// fixtureRoster ships with pre-assigned stats and is served when neither the
// cache nor the market-data provider can supply a roster.
var fixtureRoster = []model.Character{ //nolint:gochecknoglobals // immutable seed data, copied on read
	{
		ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Rank: 1,
		Price: 62341.23, MarketCap: 1228642378901, Color: "#F7931A",
		Image:       "/images/bitcoin.png",
		Stats:       model.Stats{Strength: 95, Speed: 60, Intelligence: 85, Charisma: 90},
		Description: "The king of cryptocurrencies, the digital gold standard with limited supply and high security.",
	},
	{
		ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Rank: 2,
		Price: 3105.68, MarketCap: 373425609823, Color: "#627EEA",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 85, Speed: 75, Intelligence: 98, Charisma: 80},
		Description: "Smart and creative builder of the digital world, creator of smart contracts and decentralized applications.",
	},
	{
		ID: "tether", Name: "Tether", Symbol: "USDT", Rank: 3,
		Price: 1.00, MarketCap: 110854604352, Color: "#26A17B",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 60, Speed: 70, Intelligence: 75, Charisma: 65},
		Description: "Stable and reliable store of value, always equal to one US dollar.",
	},
	{
		ID: "bnb", Name: "BNB", Symbol: "BNB", Rank: 4,
		Price: 601.42, MarketCap: 89764519234, Color: "#F3BA2F",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 88, Speed: 82, Intelligence: 80, Charisma: 75},
		Description: "Powerful warrior of the exchange world, offering discounts on trading fees and building a complete ecosystem.",
	},
	{
		ID: "solana", Name: "Solana", Symbol: "SOL", Rank: 5,
		Price: 134.21, MarketCap: 60372953764, Color: "#00FFA3",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 80, Speed: 98, Intelligence: 85, Charisma: 82},
		Description: "Lightning-fast speedster of the blockchain world with high throughput and low fees.",
	},
	{
		ID: "xrp", Name: "XRP", Symbol: "XRP", Rank: 6,
		Price: 0.517, MarketCap: 28947625341, Color: "#23292F",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 75, Speed: 95, Intelligence: 78, Charisma: 70},
		Description: "Fast intermediary for international transfers, connecting banks and payment systems.",
	},
	{
		ID: "usdc", Name: "USD Coin", Symbol: "USDC", Rank: 7,
		Price: 1.00, MarketCap: 28135573128, Color: "#2775CA",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 62, Speed: 68, Intelligence: 80, Charisma: 70},
		Description: "Regulated stablecoin fully backed by US dollars, offering transparency and stability.",
	},
	{
		ID: "cardano", Name: "Cardano", Symbol: "ADA", Rank: 8,
		Price: 0.45, MarketCap: 16149562798, Color: "#0033AD",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 72, Speed: 65, Intelligence: 94, Charisma: 78},
		Description: "Scientist and philosopher of the crypto world, creating blockchain based on scientific research and formal verification.",
	},
	{
		ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE", Rank: 9,
		Price: 0.132, MarketCap: 19014937634, Color: "#C2A633",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 60, Speed: 75, Intelligence: 65, Charisma: 98},
		Description: "Friendly meme dog that became a people's cryptocurrency and internet favorite.",
	},
	{
		ID: "shiba-inu", Name: "Shiba Inu", Symbol: "SHIB", Rank: 10,
		Price: 0.00001822, MarketCap: 10733676429, Color: "#FFA409",
		Image:       placeholderImage,
		Stats:       model.Stats{Strength: 58, Speed: 72, Intelligence: 68, Charisma: 90},
		Description: "DOGE's younger brother that created its own ecosystem with ambitious plans.",
	},
}

// Fixtures returns a copy of the static roster.
func Fixtures() []model.Character {
	out := make([]model.Character, len(fixtureRoster))
	copy(out, fixtureRoster)
	return out
}
