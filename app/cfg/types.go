package cfg

type Cfg struct {
	// Application configuration
	ConfigPath string
	CacheDir   string
	DBPath     string
	Port       string

	WorkerCount       int
	SchedulerInterval int
	FetchTimeout      int
	APIAccessKey      string

	// Application metadata
	Debug   bool
	Version string
}
