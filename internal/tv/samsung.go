package tv

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	probeTimeout     = 2 * time.Second
	restTimeout      = 3 * time.Second
	wsHandshakeLimit = 5 * time.Second
	wsConnectWait    = 10 * time.Second
	wolPort          = 9
)

// DeviceInfo is the subset of the TV's REST descriptor we care about.
type DeviceInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ModelName  string `json:"modelName"`
	PowerState string `json:"PowerState"`
	WifiMac    string `json:"wifiMac"`
	TokenAuth  string `json:"TokenAuthSupport"`
}

type deviceInfoResponse struct {
	Device  DeviceInfo `json:"device"`
	Version string     `json:"version"`
}

// SamsungConfig carries the network identity of the television.
type SamsungConfig struct {
	Host        string
	Port        int
	MAC         string
	AppName     string
	TokenFile   string
	BroadcastIP string
}

// Samsung drives a Tizen-era Samsung TV: power state over its local REST
// endpoint, key presses over its remote-control websocket, and Wake-on-LAN
// for deep standby. Both local endpoints use a self-signed certificate, so
// TLS verification is disabled for this device only.
type Samsung struct {
	cfg        SamsungConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[DeviceInfo]
	logger     *zap.Logger

	token string
}

// NewSamsung builds a controller. No connection is made until first use.
func NewSamsung(cfg SamsungConfig, logger *zap.Logger) *Samsung {
	if cfg.AppName == "" {
		cfg.AppName = "presencetv"
	}
	if cfg.BroadcastIP == "" {
		cfg.BroadcastIP = "255.255.255.255"
	}

	s := &Samsung{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: restTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger.Named("samsung"),
	}

	s.breaker = gobreaker.NewCircuitBreaker[DeviceInfo](gobreaker.Settings{
		Name:        "tv-rest",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("REST breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	s.token = s.loadToken()
	return s
}

// QueryState probes TCP reachability first, then asks the REST endpoint for
// the panel state. An unreachable TV and one in deep standby are
// indistinguishable, both report StateUnreachable.
func (s *Samsung) QueryState(ctx context.Context) State {
	if !s.reachable(ctx) {
		return StateUnreachable
	}

	info, err := s.breaker.Execute(func() (DeviceInfo, error) {
		return s.deviceInfo(ctx)
	})
	if err != nil {
		// Port answered but the API did not; the panel is almost
		// certainly off while the network stack winds down.
		s.logger.Debug("Device info query failed, assuming standby", zap.Error(err))
		return StateStandby
	}

	if strings.EqualFold(info.PowerState, "on") {
		return StateOn
	}
	return StateStandby
}

// DeviceInfo fetches the TV's REST descriptor, bypassing the breaker. Used
// by the CLI for diagnostics.
func (s *Samsung) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	return s.deviceInfo(ctx)
}

// TogglePower presses KEY_POWER over the remote-control websocket. The
// session is opened per press; the TV drops idle remote sessions anyway.
func (s *Samsung) TogglePower(ctx context.Context) error {
	conn, err := s.dialRemote(ctx)
	if err != nil {
		return fmt.Errorf("remote session: %w", err)
	}
	defer conn.Close()

	press := map[string]any{
		"method": "ms.remote.control",
		"params": map[string]string{
			"Cmd":          "Click",
			"DataOfCmd":    "KEY_POWER",
			"Option":       "false",
			"TypeOfRemote": "SendRemoteKey",
		},
	}
	if err := conn.WriteJSON(press); err != nil {
		return fmt.Errorf("send power key: %w", ErrProtocol)
	}

	s.logger.Debug("Sent power toggle")
	return nil
}

// Wake broadcasts a Wake-on-LAN magic packet for the TV's MAC.
func (s *Samsung) Wake(ctx context.Context) error {
	if s.cfg.MAC == "" {
		return fmt.Errorf("no MAC address configured: %w", ErrUnreachable)
	}

	packet, err := magicPacket(s.cfg.MAC)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", fmt.Sprintf("%s:%d", s.cfg.BroadcastIP, wolPort))
	if err != nil {
		return fmt.Errorf("open wol socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("send wol packet: %w", err)
	}

	s.logger.Debug("Sent wake-on-lan packet", zap.String("mac", s.cfg.MAC))
	return nil
}

func (s *Samsung) Close() error { return nil }

func (s *Samsung) reachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (s *Samsung) deviceInfo(ctx context.Context) (DeviceInfo, error) {
	endpoint := fmt.Sprintf("https://%s/api/v2/", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DeviceInfo{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device info request: %w", ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DeviceInfo{}, fmt.Errorf("device info status %d: %w", resp.StatusCode, ErrProtocol)
	}

	var parsed deviceInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return DeviceInfo{}, fmt.Errorf("decode device info: %w", ErrProtocol)
	}
	return parsed.Device, nil
}

// dialRemote opens the remote-control websocket and waits for the channel
// connect event, persisting any freshly issued auth token.
func (s *Samsung) dialRemote(ctx context.Context) (*websocket.Conn, error) {
	name := base64.StdEncoding.EncodeToString([]byte(s.cfg.AppName))

	q := url.Values{}
	q.Set("name", name)
	if s.token != "" {
		q.Set("token", s.token)
	}
	endpoint := url.URL{
		Scheme:   "wss",
		Host:     net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Path:     "/api/v2/channels/samsung.remote.control",
		RawQuery: q.Encode(),
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: wsHandshakeLimit,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial remote: %w", ErrUnreachable)
	}

	// The TV answers with ms.channel.connect once the session (and, on
	// first contact, the on-screen authorization) is accepted.
	conn.SetReadDeadline(time.Now().Add(wsConnectWait))
	var event struct {
		Event string `json:"event"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		conn.Close()
		return nil, fmt.Errorf("await channel connect: %w", ErrProtocol)
	}
	if event.Event != "ms.channel.connect" {
		conn.Close()
		return nil, fmt.Errorf("unexpected channel event %q: %w", event.Event, ErrProtocol)
	}
	conn.SetReadDeadline(time.Time{})

	if event.Data.Token != "" && event.Data.Token != s.token {
		s.token = event.Data.Token
		s.saveToken(event.Data.Token)
	}
	return conn, nil
}

func (s *Samsung) loadToken() string {
	if s.cfg.TokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(s.cfg.TokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Samsung) saveToken(token string) {
	if s.cfg.TokenFile == "" {
		return
	}
	if err := os.WriteFile(s.cfg.TokenFile, []byte(token+"\n"), 0o600); err != nil {
		s.logger.Warn("Failed to persist auth token", zap.Error(err))
		return
	}
	s.logger.Info("Stored new TV auth token", zap.String("file", s.cfg.TokenFile))
}

// magicPacket builds a Wake-on-LAN frame: six 0xFF bytes followed by the
// target MAC sixteen times.
func magicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("parse mac %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("mac %q is not 48-bit", mac)
	}

	packet := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}
