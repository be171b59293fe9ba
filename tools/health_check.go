package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"flash-sniper/pkg/config"
	"flash-sniper/pkg/db"
	"flash-sniper/pkg/exchanges/okx"
)

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	fmt.Println("🏥 flash-sniper health check")
	fmt.Println("============================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := HealthReport{Overall: "HEALTHY"}

	cfg, cfgStatus := checkConfig()
	report.Services = append(report.Services, cfgStatus)
	if cfg != nil {
		report.Services = append(report.Services,
			checkDatabase(cfg),
			checkServerTime(ctx, cfg),
			checkLogin(ctx, cfg),
			checkAPIServer(cfg),
		)
	}

	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println("Results:")
	fmt.Println("--------")
	for _, svc := range report.Services {
		statusIcon := "✓"
		if svc.Status == "UNHEALTHY" {
			statusIcon = "✗"
		} else if svc.Status == "DEGRADED" {
			statusIcon = "⚠"
		}
		fmt.Printf("%s %-20s %s %s\n", statusIcon, svc.Service, svc.Status, svc.Message)
	}
	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
	}

	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: "HEALTHY", Timestamp: time.Now()}
}

func checkConfig() (*config.Config, HealthStatus) {
	status := newStatus("Configuration")
	cfg, err := config.Load()
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, status
	}
	mode := "LIVE"
	if cfg.SimulationMode {
		mode = "DEMO"
	}
	status.Message = fmt.Sprintf("mode=%s sizing=%s", mode, cfg.SizingMode)
	return cfg, status
}

func checkDatabase(cfg *config.Config) HealthStatus {
	status := newStatus("Journal")
	database, err := db.New(cfg.DBPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Open failed: %v", err)
		return status
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Migrations failed: %v", err)
		return status
	}
	status.Message = cfg.DBPath
	return status
}

func checkServerTime(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("OKX REST")
	ts := okx.NewTimeSync(okx.RESTBaseURL, cfg.ProxyURL)
	if err := ts.Sync(ctx); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Server time failed: %v", err)
		return status
	}
	status.Message = fmt.Sprintf("clock offset %s", ts.Offset())
	if off := ts.Offset(); off > time.Second || off < -time.Second {
		status.Status = "DEGRADED"
	}
	return status
}

func checkLogin(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("OKX private WS")
	ch, err := okx.Connect(ctx, okx.EndpointPrivate.URL(cfg.SimulationMode), okx.DialOptions{
		ProxyURL:  cfg.ProxyURL,
		Simulated: cfg.SimulationMode,
		Name:      "health",
	})
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	defer ch.Close()

	creds := okx.Credentials{APIKey: cfg.APIKey, SecretKey: cfg.SecretKey, Passphrase: cfg.Passphrase}
	if err := okx.Login(ctx, ch, creds, okx.DefaultAuthTimeout); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Login failed: %v", err)
		return status
	}
	status.Message = "Login accepted"
	return status
}

func checkAPIServer(cfg *config.Config) HealthStatus {
	status := newStatus("Status API")
	if cfg.HTTPAddr == "" {
		status.Status = "DEGRADED"
		status.Message = "Disabled"
		return status
	}

	addr := cfg.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	resp, err := resty.New().SetTimeout(5 * time.Second).R().Get("http://" + addr + "/health")
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	if resp.StatusCode() != 200 {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode())
		return status
	}
	status.Message = "Running"
	return status
}
