package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vocdoni/groth16-session/api"
	"github.com/vocdoni/groth16-session/backend"
	"github.com/vocdoni/groth16-session/circuits"
	"github.com/vocdoni/groth16-session/circuits/sum"
	"github.com/vocdoni/groth16-session/config"
	"github.com/vocdoni/groth16-session/log"
	"github.com/vocdoni/groth16-session/service"
)

// envPrefix is the prefix of the environment variables that override the
// flags, i.e. ZKSESSION_PORT or ZKSESSION_ARTIFACTS_PROVINGKEYHASH.
const envPrefix = "ZKSESSION"

// knownCircuits are the circuits that can be served, by name.
var knownCircuits = map[string]circuits.Definition{
	sum.Definition{}.Name(): sum.Definition{},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [serve|setup]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  serve  runs the proof session API (default)\n")
	fmt.Fprintf(os.Stderr, "  setup  compiles the circuit, runs a development setup and stores\n")
	fmt.Fprintf(os.Stderr, "         the artifacts in the artifacts directory\n\n")
	flag.PrintDefaults()
}

func main() {
	conf, mode, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(conf.LogLevel, conf.LogOutput, nil)
	if conf.ArtifactsDir != "" {
		circuits.BaseDir = conf.ArtifactsDir
	}
	def, ok := knownCircuits[conf.Circuit]
	if !ok {
		log.Fatalf("unknown circuit %q", conf.Circuit)
	}

	switch mode {
	case "serve":
		if err := serve(conf, def); err != nil {
			log.Fatal(err)
		}
	case "setup":
		if err := setup(def); err != nil {
			log.Fatal(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

// loadConfig parses the flags and merges them with the environment and the
// config file, if any. Flags set explicitly take precedence over the
// environment, that takes precedence over the config file.
func loadConfig() (*config.Config, string, error) {
	conf := config.Default()
	flag.Usage = usage
	flag.String("config", "", "path to a config file (yaml, toml or json)")
	flag.String("logLevel", conf.LogLevel, "log level (debug, info, warn, error)")
	flag.String("logOutput", conf.LogOutput, "log output (stdout, stderr or a file path)")
	flag.String("host", conf.Host, "API listen address")
	flag.Int("port", conf.Port, "API listen port")
	flag.String("busyPolicy", conf.BusyPolicy, "what to do with operations on a busy session (reject or queue)")
	flag.Int("maxSessions", conf.MaxSessions, "maximum number of live sessions, 0 for no limit")
	flag.String("circuit", conf.Circuit, "circuit to prove")
	flag.String("artifactsDir", conf.ArtifactsDir, "directory of the circuit artifacts cache")
	flag.Duration("downloadTimeout", conf.DownloadTimeout, "time limit to download the circuit artifacts")
	flag.String("artifacts.circuitURL", "", "remote URL of the constraint system")
	flag.String("artifacts.circuitHash", "", "sha256 hash of the constraint system")
	flag.String("artifacts.provingKeyURL", "", "remote URL of the proving key")
	flag.String("artifacts.provingKeyHash", "", "sha256 hash of the proving key")
	flag.String("artifacts.verifyingKeyURL", "", "remote URL of the verifying key")
	flag.String("artifacts.verifyingKeyHash", "", "sha256 hash of the verifying key")
	flag.Parse()

	mode := "serve"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, "", fmt.Errorf("failed to bind flags: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	if err := v.Unmarshal(conf); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return conf, mode, nil
}

func serve(conf *config.Config, def circuits.Definition) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	artifacts, err := conf.CircuitArtifacts()
	if err != nil {
		return err
	}
	if artifacts != nil {
		log.Infow("downloading circuit artifacts", "dir", circuits.BaseDir)
		if err := service.DownloadArtifacts(conf.DownloadTimeout, artifacts); err != nil {
			return fmt.Errorf("failed to download artifacts: %w", err)
		}
	} else {
		log.Warnw("no circuit artifacts configured, using a development setup", "circuit", def.Name())
	}

	// load the backend now so the first session does not pay for it
	loader := backend.NewCached(backend.NewGroth16Loader(backend.Groth16Config{
		Circuit:   def,
		Artifacts: artifacts,
	}))
	if _, err := loader.Load(ctx); err != nil {
		return fmt.Errorf("failed to load backend: %w", err)
	}

	policy, err := conf.SessionBusyPolicy()
	if err != nil {
		return err
	}
	apiService := service.NewAPI(api.APIConfig{
		Host:        conf.Host,
		Port:        conf.Port,
		Loader:      loader,
		BusyPolicy:  policy,
		MaxSessions: conf.MaxSessions,
	})
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	host, port := apiService.HostPort()
	log.Infow("proof session service ready", "host", host, "port", port, "circuit", def.Name())

	<-ctx.Done()
	log.Infow("shutting down")
	apiService.Stop()
	return nil
}

func setup(def circuits.Definition) error {
	ccs, pk, vk, err := backend.Setup(def)
	if err != nil {
		return err
	}
	artifacts, err := circuits.StoreSetup(ccs, pk, vk)
	if err != nil {
		return err
	}
	fmt.Printf("circuit %s stored in %s\n", def.Name(), circuits.BaseDir)
	fmt.Printf("--artifacts.circuitHash=%x\n", []byte(artifacts.CircuitDefinitionHash()))
	fmt.Printf("--artifacts.provingKeyHash=%x\n", []byte(artifacts.ProvingKeyHash()))
	fmt.Printf("--artifacts.verifyingKeyHash=%x\n", []byte(artifacts.VerifyingKeyHash()))
	return nil
}
