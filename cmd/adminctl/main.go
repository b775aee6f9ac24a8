/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command adminctl logs in to the admin backend and fires a batch of concurrent queries through the API client.
// With --mock it starts an in-process backend and may expire its access tokens to demonstrate the refresh path.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	golog "log"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/acronis/go-adminclient/apiclient"
	"github.com/acronis/go-adminclient/config"
	"github.com/acronis/go-adminclient/credential"
	"github.com/acronis/go-adminclient/httpclient"
	"github.com/acronis/go-adminclient/internal/libinfo"
	"github.com/acronis/go-adminclient/internal/mockbackend"
	"github.com/acronis/go-adminclient/log"
	"github.com/acronis/go-adminclient/notify"
)

const envVarsPrefix = "adminctl"

// Options are the command line options.
type Options struct {
	Config      string `short:"c" long:"config" description:"YAML config file"`
	Username    string `short:"u" long:"username" description:"admin username" required:"true"`
	Password    string `short:"p" long:"password" description:"admin password" env:"ADMINCTL_PASSWORD"`
	Requests    int    `short:"n" long:"requests" description:"number of concurrent queries" default:"8"`
	Credentials string `long:"credentials" description:"file to keep the credential pair in, kept in memory if empty"`
	Mock        bool   `long:"mock" description:"run against an in-process mock backend"`
	Expire      bool   `long:"expire" description:"expire access tokens of the mock backend before the queries"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		golog.Fatal(err)
	}
}

func run(args []string) error {
	cfgLoader := config.NewDefaultLoader(envVarsPrefix)
	if err := cfgLoader.LoadEnvFile(".env"); err != nil {
		return err
	}

	opts := &Options{}
	if _, err := flags.ParseArgs(opts, args); err != nil {
		return err
	}
	if opts.Requests <= 0 {
		return fmt.Errorf("requests must be positive, got %d", opts.Requests)
	}

	var backend *mockbackend.Server
	if opts.Mock {
		backend = mockbackend.New(mockbackend.Opts{Delay: 100 * time.Millisecond})
		baseURL, stop, err := serveMockBackend(backend)
		if err != nil {
			return fmt.Errorf("start mock backend: %w", err)
		}
		defer stop()
		cfgLoader.DataProvider.Set("client.baseURL", baseURL)
	}

	logCfg, clientCfg, err := loadConfig(cfgLoader, opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closeLogger := log.NewLogger(logCfg)
	defer closeLogger()

	registry := prometheus.NewRegistry()
	client, store, err := newClient(clientCfg, opts.Credentials, logger, registry)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	loginOutcome := client.Login(ctx, apiclient.Request{
		Path:   "/user/login",
		Params: apiclient.StaticParams(url.Values{"username": {opts.Username}, "password": {opts.Password}}),
	})
	if loginOutcome.Failed || !loginOutcome.Meta.Success {
		return fmt.Errorf("login failed: %v (%s)", loginOutcome.Err, loginOutcome.Meta.Message)
	}
	tok, err := credential.TokenSource(store).Token()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	cred, _ := store.Get()
	logger.Info("logged in", log.String("user_id", cred.UserID), log.Time("access_token_expiry", tok.Expiry))

	if backend != nil && opts.Expire {
		backend.ExpireAccessTokens()
		logger.Info("access tokens of the mock backend are expired")
	}

	startTime := time.Now()
	outcomes := queryUsers(ctx, client, opts.Requests)
	elapsed := time.Since(startTime)

	failed := 0
	for i, out := range outcomes {
		if out.Failed {
			failed++
			fmt.Printf("query #%d: failed: %v\n", i+1, out.Err)
			continue
		}
		fmt.Printf("query #%d: page %d, %d of %d users\n", i+1, out.Payload.Page, len(out.Payload.List), out.Payload.Total)
	}
	fmt.Printf("%d queries done in %s, %d failed\n", len(outcomes), elapsed.Round(time.Millisecond), failed)
	if backend != nil {
		fmt.Printf("mock backend: %d refresh calls, %d requests in flight at most\n",
			backend.RefreshCalls(), backend.MaxInFlight())
	}
	if err = printMetrics(os.Stdout, registry); err != nil {
		return err
	}
	if failed != 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(outcomes))
	}
	return nil
}

func loadConfig(cfgLoader *config.Loader, path string) (*log.Config, *apiclient.Config, error) {
	logCfg := log.NewConfig()
	clientCfg := apiclient.NewConfig()
	if path == "" {
		return logCfg, clientCfg, cfgLoader.Load(logCfg, clientCfg)
	}
	return logCfg, clientCfg, cfgLoader.LoadFromFile(path, config.DataTypeYAML, logCfg, clientCfg)
}

func newClient(
	cfg *apiclient.Config, credentialsPath string, logger log.FieldLogger, registerer prometheus.Registerer,
) (*apiclient.Client, credential.Store, error) {
	bus := credential.NewBus()
	var store credential.Store = credential.NewMemoryStore(bus)
	if credentialsPath != "" {
		fileStore, err := credential.NewFileStore(credentialsPath, bus)
		if err != nil {
			return nil, nil, fmt.Errorf("open credential store: %w", err)
		}
		store = fileStore
	}
	bus.Subscribe(func(e credential.Event) {
		logger.Debug("credential event", log.String("kind", e.Kind.String()))
	})

	httpMetrics := httpclient.NewPrometheusMetricsCollector(envVarsPrefix)
	clientMetrics := apiclient.NewPrometheusMetricsCollector(envVarsPrefix)
	registerer.MustRegister(httpMetrics.Durations,
		clientMetrics.InFlight, clientMetrics.Queued, clientMetrics.Refreshes, clientMetrics.QueueWaits)

	client, err := apiclient.NewWithOpts(cfg, store, apiclient.Opts{
		Bus:       bus,
		Navigator: logNavigator{logger},
		Sink: notify.SinkFunc(func(kind notify.Kind, message string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", kind, message)
		}),
		HTTPClientOpts: httpclient.Opts{
			UserAgent: "adminctl",
			Collector: httpMetrics,
		},
		Logger:  logger,
		Metrics: clientMetrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create client: %w", err)
	}
	return client, store, nil
}

func queryUsers(ctx context.Context, client *apiclient.Client, n int) []apiclient.Outcome[mockbackend.Page] {
	outcomes := make([]apiclient.Outcome[mockbackend.Page], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = apiclient.Perform[mockbackend.Page](ctx, client, apiclient.Request{
				Path:   "/user/query",
				Params: apiclient.StaticParams(url.Values{"page": {strconv.Itoa(i%3 + 1)}, "size": {"10"}}),
				Type:   "user_query",
			})
		}(i)
	}
	wg.Wait()
	return outcomes
}

// printMetrics prints the collected client metrics, one sample per line.
func printMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s%s %s\n", mf.GetName(), formatLabels(m.GetLabel()), formatSample(mf.GetType(), m))
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	labels := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.GetName() == libinfo.PrometheusLibVersionLabel {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	if len(labels) == 0 {
		return ""
	}
	sort.Strings(labels)
	return "{" + strings.Join(labels, ",") + "}"
}

func formatSample(metricType dto.MetricType, m *dto.Metric) string {
	switch metricType {
	case dto.MetricType_COUNTER:
		return strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
	case dto.MetricType_GAUGE:
		return strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
	default:
		return "unsupported metric type " + metricType.String()
	}
}

func serveMockBackend(backend http.Handler) (baseURL string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: backend, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}

type logNavigator struct {
	logger log.FieldLogger
}

func (n logNavigator) RedirectToLogin() {
	n.logger.Warn("session is over, log in again")
}

func (n logNavigator) ResetRoutes() {
	n.logger.Info("routing state is reset")
}
