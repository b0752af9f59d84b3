package seed

import "time"

const day = 24 * time.Hour

// LinkFixture is one link of the development data set. Ages are
// relative to the time the seeder runs.
type LinkFixture struct {
	ShortCode   string
	OriginalURL string
	Active      bool
	Custom      bool
	CreatedAgo  time.Duration
}

// ClickFixture is one historical click on the link with ShortCode.
type ClickFixture struct {
	ShortCode string
	Ago       time.Duration
	IP        string // "" = absent
	UserAgent string // "" = absent
}

const (
	uaChromeWin     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	uaChromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	uaSafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"
	uaFirefoxUbuntu = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"
	uaFirefoxWin    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0"
	uaChromeLinux   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	uaIPhone        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	uaPixel         = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.6167.144 Mobile Safari/537.36"
	uaGalaxy        = "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.6167.144 Mobile Safari/537.36"
	uaCurl          = "curl/8.4.0"
	uaHTTPX         = "python-httpx/0.26.0"
)

// Links is the development link set: vanity codes, generated-looking
// codes and two disabled links that keep their click history.
var Links = []LinkFixture{
	{"gh", "https://github.com", true, true, 30 * day},
	{"docs", "https://docs.python.org/3/", true, true, 25 * day},
	{"yt", "https://www.youtube.com", true, true, 20 * day},
	{"so", "https://stackoverflow.com/questions", true, true, 18 * day},
	{"sa-promo", "https://www.amazon.com/deals/storefront?tag=example-20", true, true, 10 * day},

	{"x7q2p", "https://www.bbc.com/news/technology/article/2026-ai-breakthrough", true, false, 15 * day},
	{"m3nkR", "https://medium.com/@dev/building-a-url-shortener-with-fastapi-abc123", true, false, 12 * day},
	{"Zp9wL", "https://www.npmjs.com/package/zod", true, false, 8 * day},
	{"t4Rqx", "https://docs.sqlalchemy.org/en/20/orm/quickstart.html", true, false, 5 * day},
	{"Kw2vN", "https://hub.docker.com/_/postgres", true, false, 3 * day},

	{"old-sale", "https://www.example.com/promo/blackfriday-2024", false, true, 90 * day},
	{"qX5mY", "https://pastebin.com/raw/deprecated-snippet", false, false, 45 * day},
}

// Clicks is the click history for Links.
var Clicks = []ClickFixture{
	{"gh", 1 * time.Hour, "203.0.113.42", uaChromeWin},
	{"gh", 3 * time.Hour, "198.51.100.7", uaSafariMac},
	{"gh", 6 * time.Hour, "192.0.2.88", uaFirefoxLinux},
	{"gh", 12 * time.Hour, "2001:db8::1", uaIPhone},
	{"gh", 18 * time.Hour, "203.0.113.5", uaCurl},
	{"gh", 24 * time.Hour, "198.51.100.22", uaChromeWin},
	{"gh", 30 * time.Hour, "192.0.2.10", uaHTTPX},

	{"docs", 2 * time.Hour, "203.0.113.99", uaChromeMac},
	{"docs", 8 * time.Hour, "198.51.100.3", uaFirefoxUbuntu},
	{"docs", 20 * time.Hour, "192.0.2.55", uaFirefoxWin},

	{"yt", 1 * time.Hour, "203.0.113.17", uaIPhone},
	{"yt", 4 * time.Hour, "198.51.100.44", uaPixel},
	{"yt", 10 * time.Hour, "192.0.2.200", uaChromeWin},

	{"sa-promo", 1 * time.Hour, "203.0.113.50", uaChromeWin},
	{"sa-promo", 1 * time.Hour, "198.51.100.71", uaSafariMac},
	{"sa-promo", 2 * time.Hour, "192.0.2.130", uaIPhone},
	{"sa-promo", 2 * time.Hour, "203.0.113.88", uaGalaxy},
	{"sa-promo", 3 * time.Hour, "198.51.100.9", uaChromeWin},

	{"x7q2p", 5 * time.Hour, "192.0.2.77", uaChromeMac},
	{"x7q2p", 14 * time.Hour, "203.0.113.33", uaFirefoxLinux},

	{"m3nkR", 7 * time.Hour, "198.51.100.60", uaChromeWin},

	{"Zp9wL", 2 * time.Hour, "192.0.2.44", uaCurl},
	{"Zp9wL", 9 * time.Hour, "203.0.113.21", uaChromeLinux},

	// Disabled link, history kept.
	{"old-sale", 80 * day, "198.51.100.15", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"},
	{"old-sale", 85 * day, "192.0.2.66", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15"},

	// Privacy proxy: no IP, no user agent.
	{"t4Rqx", 1 * time.Hour, "", ""},
}
