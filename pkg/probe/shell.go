/*
 * Copyright 2025 Storegrid, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

const (
	shellConnectTimeout = 10 * time.Second
	shellReadTimeout    = 5 * time.Second
	defaultShellPort    = 22
)

var (
	// promptRe matches an IOS-style command prompt at the end of output.
	// '>' is user EXEC, '#' is privileged EXEC.
	promptRe = regexp.MustCompile(`(?m)^[\w.()\/-]*[>#] ?$`)

	// passwordPromptRe matches the password challenge shown by enable.
	passwordPromptRe = regexp.MustCompile(`(?i)password[: ]*$`)
)

// ShellProber manages full-featured switches over an interactive SSH
// session: prompt detection by pattern, privileged-mode escalation, and a
// fixed command sequence per operation. Each session owns a single shared
// read buffer, so operations against one device are strictly sequential.
type ShellProber struct {
	logger logger.Logger
}

var _ Prober = (*ShellProber)(nil)

func NewShellProber(log logger.Logger) *ShellProber {
	return &ShellProber{logger: log}
}

// ShellNeighbor is one row of the neighbor-discovery table.
type ShellNeighbor struct {
	DeviceID  string
	LocalPort string
	PortID    string
}

// PoEPort is one row of the power-over-Ethernet table.
type PoEPort struct {
	Port    string
	AdminOn bool
	OperOn  bool
	Watts   float64
	Device  string
}

// AccessPoint is a powered, LLDP-visible device found behind a switch
// port on the target VLAN.
type AccessPoint struct {
	Port     string
	MAC      string
	Neighbor string
	Watts    float64
}

func (p *ShellProber) Poll(ctx context.Context, target models.PollTarget) (*models.PollOutcome, error) {
	if target.Shell == nil {
		return nil, ErrNoCredentials
	}

	outcome := &models.PollOutcome{Attributes: map[string]string{}}

	sess, err := p.open(ctx, target)
	if err != nil {
		// A refused or timed-out connection is a clean offline; an auth
		// or protocol failure reached a live peer and counts as an
		// error probe.
		outcome.ProbedError = !isUnreachable(err)

		p.logger.Debug().Err(err).Str("target", target.Address).Msg("shell session failed")

		return outcome, nil
	}
	defer sess.close()

	outcome.ProbedOnline = true

	// Attributes are best-effort; a parse failure does not demote the
	// online verdict.
	if out, err := sess.run("show version"); err == nil {
		model, firmware, uptime := parseShowVersion(out)
		outcome.Model = model
		outcome.Firmware = firmware
		outcome.UptimeSeconds = uptime
	} else {
		p.logger.Debug().Err(err).Str("target", target.Address).Msg("show version failed")
	}

	// The prompt carries the configured device name.
	outcome.Hostname = sess.promptHostname()

	return outcome, nil
}

func (p *ShellProber) PortTable(ctx context.Context, target models.PollTarget) ([]models.PortState, error) {
	if target.Shell == nil {
		return nil, ErrNoCredentials
	}

	sess, err := p.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	out, err := sess.run("show interfaces status")
	if err != nil {
		return nil, err
	}

	return parseInterfaceStatus(out), nil
}

// SetPortConfig enters configuration mode and applies the change as a
// fixed command sequence. Requires privileged mode.
func (p *ShellProber) SetPortConfig(ctx context.Context, target models.PollTarget, change models.PortConfigChange) error {
	if target.Shell == nil {
		return ErrNoCredentials
	}

	if change.Name == "" {
		return errors.New("port name is required for shell port writes")
	}

	sess, err := p.open(ctx, target)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.escalate(target.Shell.EnablePassword); err != nil {
		return err
	}

	commands := []string{"configure terminal", "interface " + change.Name}

	if change.AdminUp != nil {
		if *change.AdminUp {
			commands = append(commands, "no shutdown")
		} else {
			commands = append(commands, "shutdown")
		}
	}

	if change.Description != nil {
		if *change.Description == "" {
			commands = append(commands, "no description")
		} else {
			commands = append(commands, "description "+*change.Description)
		}
	}

	if change.VLAN != nil {
		commands = append(commands, fmt.Sprintf("switchport access vlan %d", *change.VLAN))
	}

	if change.PoEEnabled != nil {
		if *change.PoEEnabled {
			commands = append(commands, "power inline auto")
		} else {
			commands = append(commands, "power inline never")
		}
	}

	commands = append(commands, "end")

	for _, cmd := range commands {
		if _, err := sess.run(cmd); err != nil {
			return fmt.Errorf("config command %q failed: %w", cmd, err)
		}
	}

	return nil
}

// Neighbors returns the LLDP neighbor table.
func (p *ShellProber) Neighbors(ctx context.Context, target models.PollTarget) ([]ShellNeighbor, error) {
	if target.Shell == nil {
		return nil, ErrNoCredentials
	}

	sess, err := p.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	out, err := sess.run("show lldp neighbors")
	if err != nil {
		return nil, err
	}

	return parseLLDPNeighbors(out), nil
}

// PoETable returns the power-over-Ethernet table.
func (p *ShellProber) PoETable(ctx context.Context, target models.PollTarget) ([]PoEPort, error) {
	if target.Shell == nil {
		return nil, ErrNoCredentials
	}

	sess, err := p.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	out, err := sess.run("show power inline")
	if err != nil {
		return nil, err
	}

	return parsePowerInline(out), nil
}

// FindAccessPoints discovers managed access points behind the switch by
// intersecting the MAC table for the target VLAN with the LLDP and PoE
// tables, keyed by normalized port name so vendor abbreviations compare
// equal.
func (p *ShellProber) FindAccessPoints(ctx context.Context, target models.PollTarget, vlan int) ([]AccessPoint, error) {
	if target.Shell == nil {
		return nil, ErrNoCredentials
	}

	sess, err := p.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	macOut, err := sess.run(fmt.Sprintf("show mac address-table vlan %d", vlan))
	if err != nil {
		return nil, err
	}

	lldpOut, err := sess.run("show lldp neighbors")
	if err != nil {
		return nil, err
	}

	poeOut, err := sess.run("show power inline")
	if err != nil {
		return nil, err
	}

	return intersectAccessPoints(parseMACTable(macOut), parseLLDPNeighbors(lldpOut), parsePowerInline(poeOut)), nil
}

func intersectAccessPoints(macs []macEntry, neighbors []ShellNeighbor, poe []PoEPort) []AccessPoint {
	neighborByPort := make(map[string]ShellNeighbor, len(neighbors))
	for _, n := range neighbors {
		neighborByPort[NormalizePortName(n.LocalPort)] = n
	}

	poeByPort := make(map[string]PoEPort, len(poe))
	for _, row := range poe {
		poeByPort[NormalizePortName(row.Port)] = row
	}

	var aps []AccessPoint

	for _, m := range macs {
		key := NormalizePortName(m.Port)

		neighbor, hasNeighbor := neighborByPort[key]
		power, hasPower := poeByPort[key]

		if !hasNeighbor || !hasPower || !power.OperOn {
			continue
		}

		aps = append(aps, AccessPoint{
			Port:     m.Port,
			MAC:      m.MAC,
			Neighbor: neighbor.DeviceID,
			Watts:    power.Watts,
		})
	}

	return aps
}

// ---- session handling ----

type shellSession struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser

	// Single shared read buffer fed by one reader goroutine. All prompt
	// matching happens against its tail, which is why operations on one
	// session must stay sequential.
	chunks chan []byte
	buf    strings.Builder

	prompt     string
	privileged bool

	done      chan struct{}
	closeOnce sync.Once

	logger logger.Logger
}

// open dials the target, authenticates, and waits for a command prompt.
// The ssh library negotiates authentication by offering the configured
// methods in order against the ones the peer advertises: password first,
// then keyboard-interactive answering every challenge with the same
// password.
func (p *ShellProber) open(ctx context.Context, target models.PollTarget) (*shellSession, error) {
	creds := target.Shell

	port := creds.Port
	if port == 0 {
		port = defaultShellPort
	}

	config := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}

				return answers, nil
			}),
		},
		// Fleet devices have no managed host keys; identity
		// verification is an explicit non-goal.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
		Timeout:         shellConnectTimeout,
	}

	addr := net.JoinHostPort(target.Address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: shellConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to open session on %s: %w", addr, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := sess.RequestPty("vt100", 80, 200, modes); err != nil {
		_ = sess.Close()
		_ = client.Close()

		return nil, fmt.Errorf("pty request failed: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		_ = client.Close()

		return nil, err
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		_ = client.Close()

		return nil, err
	}

	if err := sess.Shell(); err != nil {
		_ = sess.Close()
		_ = client.Close()

		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	s := &shellSession{
		client: client,
		sess:   sess,
		stdin:  stdin,
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
		logger: p.logger,
	}

	go s.readLoop(stdout)

	// Wait for the initial prompt by pattern, not fixed delay.
	banner, err := s.expect(promptRe, shellReadTimeout)
	if err != nil {
		s.close()

		return nil, ErrNoPrompt
	}

	s.prompt = lastLine(banner)

	// Paging would wedge every subsequent expect.
	if _, err := s.run("terminal length 0"); err != nil {
		s.logger.Debug().Err(err).Msg("failed to disable paging")
	}

	return s, nil
}

func (s *shellSession) readLoop(stdout io.Reader) {
	buf := make([]byte, 4096)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}

		if err != nil {
			close(s.chunks)

			return
		}
	}
}

// expect accumulates output until re matches the buffer tail. It returns
// everything read since the previous expect.
func (s *shellSession) expect(re *regexp.Regexp, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if re.MatchString(s.buf.String()) {
			out := s.buf.String()
			s.buf.Reset()

			return out, nil
		}

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return s.buf.String(), io.EOF
			}

			s.buf.Write(chunk)
		case <-deadline.C:
			return s.buf.String(), ErrNoPrompt
		}
	}
}

// run sends one command and waits for the next prompt. The echoed command
// line and the trailing prompt line are stripped from the output.
func (s *shellSession) run(cmd string) (string, error) {
	if _, err := io.WriteString(s.stdin, cmd+"\n"); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	out, err := s.expect(promptRe, shellReadTimeout)
	if err != nil {
		return out, err
	}

	return stripEchoAndPrompt(out, cmd), nil
}

// escalate enters privileged mode with the enable password when the
// prompt shows user EXEC.
func (s *shellSession) escalate(enablePassword string) error {
	if s.privileged || strings.HasSuffix(strings.TrimSpace(s.prompt), "#") {
		s.privileged = true

		return nil
	}

	if _, err := io.WriteString(s.stdin, "enable\n"); err != nil {
		return fmt.Errorf("failed to send enable: %w", err)
	}

	out, err := s.expect(passwordPromptRe, shellReadTimeout)
	if err != nil {
		// Some devices drop straight into privileged mode.
		if promptRe.MatchString(out) && strings.Contains(out, "#") {
			s.privileged = true

			return nil
		}

		return ErrEnableFailed
	}

	if _, err := io.WriteString(s.stdin, enablePassword+"\n"); err != nil {
		return fmt.Errorf("failed to send enable password: %w", err)
	}

	out, err = s.expect(promptRe, shellReadTimeout)
	if err != nil || !strings.Contains(lastLine(out), "#") {
		return ErrEnableFailed
	}

	s.prompt = lastLine(out)
	s.privileged = true

	return nil
}

func (s *shellSession) promptHostname() string {
	name := strings.TrimSpace(s.prompt)
	name = strings.TrimRight(name, "># ")

	return name
}

func (s *shellSession) close() {
	s.closeOnce.Do(func() { close(s.done) })

	if s.sess != nil {
		_ = s.sess.Close()
	}

	if s.client != nil {
		_ = s.client.Close()
	}
}

// ---- output parsing ----

var (
	versionModelRe    = regexp.MustCompile(`(?im)^.*?\bmodel(?:\s+number)?\s*[:=]?\s*(\S+)`)
	versionFirmwareRe = regexp.MustCompile(`(?i)version\s+([\w.()]+)`)
	versionUptimeRe   = regexp.MustCompile(`(?i)uptime is\s+(.+)`)
)

func parseShowVersion(out string) (model, firmware string, uptimeSeconds int64) {
	if m := versionModelRe.FindStringSubmatch(out); m != nil {
		model = m[1]
	}

	if m := versionFirmwareRe.FindStringSubmatch(out); m != nil {
		firmware = m[1]
	}

	if m := versionUptimeRe.FindStringSubmatch(out); m != nil {
		uptimeSeconds = parseUptime(m[1])
	}

	return model, firmware, uptimeSeconds
}

// parseUptime converts "1 week, 2 days, 3 hours, 4 minutes" to seconds.
func parseUptime(s string) int64 {
	units := map[string]int64{
		"year": 365 * 24 * 3600, "week": 7 * 24 * 3600, "day": 24 * 3600,
		"hour": 3600, "minute": 60, "second": 1,
	}

	var total int64

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })

	for i := 0; i+1 < len(fields); i += 2 {
		n, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			continue
		}

		unit := strings.TrimSuffix(strings.ToLower(fields[i+1]), "s")
		if mult, ok := units[unit]; ok {
			total += n * mult
		}
	}

	return total
}

// parseInterfaceStatus parses IOS-style "show interfaces status" output:
//
//	Port      Name               Status       Vlan       Duplex  Speed Type
//	Gi1/0/1   uplink             connected    1          a-full  a-1000 ...
var portStatusValues = map[string]bool{
	"connected": true, "notconnect": false, "disabled": false,
	"err-disabled": false, "inactive": false, "monitoring": true,
}

func parseInterfaceStatus(out string) []models.PortState {
	var states []models.PortState

	index := 0

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		statusIdx := -1

		for i, f := range fields {
			if _, ok := portStatusValues[strings.ToLower(f)]; ok {
				statusIdx = i

				break
			}
		}

		if statusIdx < 1 {
			continue
		}

		index++

		state := models.PortState{
			Index:       index,
			Name:        fields[0],
			Description: strings.Join(fields[1:statusIdx], " "),
			OperUp:      portStatusValues[strings.ToLower(fields[statusIdx])],
			AdminUp:     strings.ToLower(fields[statusIdx]) != "disabled",
		}

		if statusIdx+1 < len(fields) {
			if vlan, err := strconv.Atoi(fields[statusIdx+1]); err == nil {
				state.VLAN = vlan
			}
		}

		states = append(states, state)
	}

	return states
}

// parseLLDPNeighbors parses IOS-style "show lldp neighbors" output:
//
//	Device ID           Local Intf     Hold-time  Capability      Port ID
//	ap-checkout-1       Gi1/0/12       120        B,W             eth0
func parseLLDPNeighbors(out string) []ShellNeighbor {
	var neighbors []ShellNeighbor

	inTable := false

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Device ID") {
			inTable = true

			continue
		}

		if !inTable {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		if strings.HasPrefix(fields[0], "Total") {
			break
		}

		neighbors = append(neighbors, ShellNeighbor{
			DeviceID:  fields[0],
			LocalPort: fields[1],
			PortID:    fields[len(fields)-1],
		})
	}

	return neighbors
}

// parsePowerInline parses IOS-style "show power inline" output:
//
//	Interface Admin  Oper       Power   Device              Class Max
//	Gi1/0/12  auto   on         15.4    AIR-AP2802I         4     30.0
func parsePowerInline(out string) []PoEPort {
	var ports []PoEPort

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		if !strings.ContainsAny(fields[0], "0123456789") {
			continue
		}

		watts, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			continue
		}

		port := PoEPort{
			Port:    fields[0],
			AdminOn: strings.EqualFold(fields[1], "auto") || strings.EqualFold(fields[1], "static"),
			OperOn:  strings.EqualFold(fields[2], "on"),
			Watts:   watts,
		}

		if len(fields) > 4 {
			port.Device = fields[4]
		}

		ports = append(ports, port)
	}

	return ports
}

type macEntry struct {
	VLAN int
	MAC  string
	Port string
}

// parseMACTable parses IOS-style "show mac address-table" output:
//
//	Vlan    Mac Address       Type        Ports
//	 100    aabb.ccdd.eeff    DYNAMIC     Gi1/0/12
func parseMACTable(out string) []macEntry {
	var entries []macEntry

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		vlan, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		mac := dottedMACToColon(fields[1])
		if mac == "" {
			continue
		}

		entries = append(entries, macEntry{VLAN: vlan, MAC: mac, Port: fields[len(fields)-1]})
	}

	return entries
}

// dottedMACToColon converts aabb.ccdd.eeff to aa:bb:cc:dd:ee:ff.
func dottedMACToColon(s string) string {
	hex := strings.ReplaceAll(strings.ToLower(s), ".", "")
	if len(hex) != 12 {
		return ""
	}

	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return ""
		}
	}

	var parts []string
	for i := 0; i < 12; i += 2 {
		parts = append(parts, hex[i:i+2])
	}

	return strings.Join(parts, ":")
}

func stripEchoAndPrompt(out, cmd string) string {
	lines := strings.Split(out, "\n")

	start := 0
	if len(lines) > 0 && strings.Contains(lines[0], cmd) {
		start = 1
	}

	end := len(lines)
	if end > start && promptRe.MatchString(lines[end-1]) {
		end--
	}

	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n "), "\n")
	if len(lines) == 0 {
		return ""
	}

	return strings.TrimSpace(lines[len(lines)-1])
}

// isUnreachable reports whether err looks like the device is simply down
// (timeout, refused, unreachable) rather than misbehaving.
func isUnreachable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
