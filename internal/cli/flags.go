package cli

// GlobalFlags are accepted by every command.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to YAML config file (defaults to $EVENT_SCANNER_CONFIG)"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand crawls, enriches and stores a range of days.
type RunCommand struct {
	From        string `long:"from" description:"First day to crawl (YYYY-MM-DD, default today)"`
	To          string `long:"to" description:"Last day to crawl (YYYY-MM-DD, default from + horizonDays - 1)"`
	SkipGeocode bool   `long:"skip-geocode" description:"Do not resolve venue coordinates"`
	SkipGenre   bool   `long:"skip-genre" description:"Do not classify artist genres"`
	Daemon      bool   `long:"daemon" description:"Keep running and repeat on the scheduler interval"`
	MetricsAddr string `long:"metrics-addr" description:"Expose Prometheus metrics on this address (overrides config)"`

	globals *GlobalFlags
	version string
}

// QueryCommand reads stored events with filters.
type QueryCommand struct {
	Run         string   `long:"run" description:"Dataset run id (default: latest run)"`
	Artist      string   `long:"artist" description:"Artist name contains (case-insensitive)"`
	Venue       string   `long:"venue" description:"Venue name contains (case-insensitive)"`
	From        string   `long:"from" description:"Events on or after this day (YYYY-MM-DD)"`
	To          string   `long:"to" description:"Events on or before this day (YYYY-MM-DD)"`
	Genre       []string `long:"genre" description:"Genre label (repeatable)"`
	Popularity  []string `long:"popularity" description:"Popularity bucket: Faible, Moyenne, Haute, Très Haute (repeatable)"`
	Weekend     string   `long:"weekend" description:"Only weekend (true) or weekday (false) events" choice:"true" choice:"false"`
	DaysAhead   int      `long:"days-ahead" description:"Only events starting within N days" default:"-1"`
	MinDuration float64  `long:"min-duration" description:"Minimum duration in hours" default:"-1"`
	MaxDuration float64  `long:"max-duration" description:"Maximum duration in hours" default:"-1"`
	Page        int      `long:"page" description:"Page number" default:"1"`
	Size        int      `long:"size" description:"Page size (1-100)" default:"10"`

	globals *GlobalFlags
}
