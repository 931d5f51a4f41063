package hgclient

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	textencoding "golang.org/x/text/encoding"

	"github.com/hgproto/hgclient-go/frame"
)

// InputProvider answers an Input or Line prompt from the server with a
// block of bytes to write back. requestedSize is the server's request
// (in bytes for Input, conventionally ignored for Line where a single
// line is expected). A nil return sends an empty block.
type InputProvider func(requestedSize uint32) []byte

// OpenOptions configures Open. Re-expressed as a named-field struct
// rather than a long positional parameter list, the way anything with
// more than one or two optional knobs is configured throughout this
// package.
type OpenOptions struct {
	// HgPath is the executable to spawn. Defaults to "hg" (resolved via PATH).
	HgPath string
	// Encoding, if non-empty, is exported as HGENCODING to the child
	// process; HGENCODING is set precisely when Encoding is non-empty.
	Encoding string
	// Configs are extra "--config k=v" pairs merged into the server's
	// invocation (e.g. to disable a pager, set ui.interactive=False).
	Configs map[string]string
}

// Session owns a single hg serve --cmdserver pipe child process. At
// most one command may be in flight at a time; mu enforces that for
// the lifetime of the session.
type Session struct {
	id string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr io.Reader

	reader *frame.Reader
	writer *frame.Writer

	enc          textencoding.Encoding
	encodingName string
	capabilities map[string]struct{}

	mu       sync.Mutex // serializes run_command end-to-end
	poisoned bool
	closed   bool

	cacheMu      sync.Mutex // guards lazy population of the caches below
	rootCache    *string
	versionCache *string
	configCache  map[string]string
}

// Open validates the repository, spawns "hg serve --cmdserver pipe"
// against it, and performs the handshake.
func Open(repoPath string, opts OpenOptions) (*Session, error) {
	info, err := os.Stat(filepath.Join(repoPath, ".hg"))
	if err != nil || !info.IsDir() {
		return nil, newErrorf(InvalidRepository, err, "not a mercurial repository: %s", repoPath)
	}

	hgPath := opts.HgPath
	if hgPath == "" {
		hgPath = "hg"
	}

	argv := []string{"serve", "--cmdserver", "pipe", "--cwd", repoPath, "--repository", repoPath}
	if len(opts.Configs) > 0 {
		argv = append(argv, "--config", joinConfigPairs(opts.Configs))
	}

	cmd := exec.Command(hgPath, argv...)
	cmd.Env = append(os.Environ(), "LANG=en_US")
	if opts.Encoding != "" {
		cmd.Env = append(cmd.Env, "HGENCODING="+opts.Encoding)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, newErrorf(ServerLaunchFailed, err, "failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newErrorf(ServerLaunchFailed, err, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, newErrorf(ServerLaunchFailed, err, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, newErrorf(ServerLaunchFailed, err, "failed to start %s", hgPath)
	}

	sess := newSessionFromStreams(stdin, stdout, stderr, cmd)
	if err := sess.handshake(); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	return sess, nil
}

// openAttached binds a session directly to a reader/writer pair
// instead of spawning a subprocess, performing the same handshake.
// This is how tests simulate the far end of "hg serve --cmdserver
// pipe" without needing hg on PATH.
func openAttached(stdin io.WriteCloser, stdout io.Reader) (*Session, error) {
	sess := newSessionFromStreams(stdin, stdout, nil, nil)
	if err := sess.handshake(); err != nil {
		return nil, err
	}
	return sess, nil
}

func newSessionFromStreams(stdin io.WriteCloser, stdout io.Reader, stderr io.Reader, cmd *exec.Cmd) *Session {
	return &Session{
		id:     uuid.NewString(),
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		reader: frame.NewReader(stdout),
		writer: frame.NewWriter(stdin),
	}
}

// ID returns the session's correlation handle — useful for telling
// sessions in a pool apart in logs when several run concurrently.
func (s *Session) ID() string { return s.id }

// Encoding returns the encoding negotiated at handshake. Fixed for the
// life of the session.
func (s *Session) Encoding() string { return s.encodingName }

// Capabilities returns the capability tokens the server advertised at
// handshake.
func (s *Session) Capabilities() []string {
	caps := make([]string, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// HasCapability reports whether the server advertised cap at handshake.
func (s *Session) HasCapability(cap string) bool {
	_, ok := s.capabilities[cap]
	return ok
}

func (s *Session) handshake() error {
	hdr, err := s.reader.ReadHeader()
	if err != nil {
		return s.translateFrameErr(err)
	}
	if hdr.Channel != frame.Output {
		return newErrorf(HandshakeError, nil, "expected Output frame for handshake, got channel %s", hdr.Channel)
	}

	payload, err := s.reader.ReadPayload(hdr.Length)
	if err != nil {
		return s.translateFrameErr(err)
	}

	headers := parseDelimited(string(payload), []string{": "})

	encodingName, ok := headers["encoding"]
	if !ok {
		return newErrorf(HandshakeError, nil, "handshake missing required 'encoding' header")
	}
	capsLine, ok := headers["capabilities"]
	if !ok {
		return newErrorf(HandshakeError, nil, "handshake missing required 'capabilities' header")
	}

	enc, err := resolveEncoding(encodingName)
	if err != nil {
		return err
	}

	s.encodingName = encodingName
	s.enc = enc
	s.capabilities = make(map[string]struct{})
	for _, tok := range strings.Fields(capsLine) {
		s.capabilities[tok] = struct{}{}
	}
	return nil
}

// translateFrameErr maps the frame package's sentinel errors onto the
// client's Kind taxonomy, tagging the result with the session's id.
func (s *Session) translateFrameErr(err error) *Error {
	var e *Error
	switch {
	case errors.Is(err, frame.ErrClosed):
		e = newErrorf(ServerClosed, err, "server pipe closed unexpectedly")
	case errors.Is(err, frame.ErrInvalidChannel):
		e = newErrorf(ProtocolError, err, "invalid channel identifier")
	default:
		e = newErrorf(ProtocolError, err, "protocol error")
	}
	e.SessionID = s.id
	return e
}

// runCommand is the low-level primitive: write a runcommand frame,
// drive the channel demultiplexer until the Result frame, and return
// the exit code. Exactly one call may be in flight per session at a
// time; mu is held for the entire exchange, since per-stream locks
// would let one goroutine's length header interleave with another's
// payload.
func (s *Session) runCommand(argv []string, outputs map[frame.ChannelTag]io.Writer, inputs map[frame.ChannelTag]InputProvider) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, newError(ServerClosed, "session is closed", nil)
	}
	if s.poisoned {
		return 0, newError(ServerClosed, "session is poisoned after a prior protocol error", nil)
	}

	if err := s.writeRunCommand(argv); err != nil {
		s.poisoned = true
		e := newErrorf(ServerClosed, err, "failed to write runcommand frame")
		e.SessionID = s.id
		return 0, e
	}

	for {
		hdr, err := s.reader.ReadHeader()
		if err != nil {
			s.poisoned = true
			return 0, s.translateFrameErr(err)
		}

		switch {
		case hdr.Channel == frame.Result:
			payload, err := s.reader.ReadPayload(hdr.Length)
			if err != nil {
				s.poisoned = true
				return 0, s.translateFrameErr(err)
			}
			if len(payload) < 4 {
				s.poisoned = true
				e := newErrorf(ProtocolError, nil, "result frame payload too short: %d bytes", len(payload))
				e.SessionID = s.id
				return 0, e
			}
			return int32(binary.BigEndian.Uint32(payload[:4])), nil

		case hdr.Channel.IsPrompt():
			var reply []byte
			if provider, ok := inputs[hdr.Channel]; ok {
				reply = provider(hdr.Length)
			}
			if err := s.writer.WriteInputReply(reply); err != nil {
				s.poisoned = true
				e := newErrorf(ServerClosed, err, "failed to write input reply")
				e.SessionID = s.id
				return 0, e
			}

		default: // Output, Error, Debug
			sink, ok := outputs[hdr.Channel]
			if !ok {
				sink = io.Discard
			}
			if err := s.reader.CopyPayload(sink, hdr.Length); err != nil {
				s.poisoned = true
				return 0, s.translateFrameErr(err)
			}
		}
	}
}

func (s *Session) writeRunCommand(argv []string) error {
	joined := strings.Join(argv, "\x00")
	block, err := encodeString(s.enc, joined)
	if err != nil {
		return err
	}
	return s.writer.WriteRunCommand(block)
}

// CommandResult is the decoded, typed result of get_command_output.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int32
}

// getCommandOutput binds Output/Error to in-memory buffers, runs the
// command, and decodes the buffers using the session's encoding.
func (s *Session) getCommandOutput(argv []string, inputs map[frame.ChannelTag]InputProvider) (CommandResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	outputs := map[frame.ChannelTag]io.Writer{
		frame.Output: &stdoutBuf,
		frame.Error:  &stderrBuf,
	}

	code, err := s.runCommand(argv, outputs, inputs)
	if err != nil {
		return CommandResult{}, err
	}

	stdout, err := decodeBytes(s.enc, stdoutBuf.Bytes())
	if err != nil {
		return CommandResult{}, newErrorf(ParseError, err, "failed to decode stdout")
	}
	stderr, err := decodeBytes(s.enc, stderrBuf.Bytes())
	if err != nil {
		return CommandResult{}, newErrorf(ParseError, err, "failed to decode stderr")
	}

	return CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
}

// Close terminates the child process and releases the pipes. Safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return nil
}

// Root returns the repository root path, populated on first read and
// cached for the life of the session.
func (s *Session) Root() (string, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.rootCache != nil {
		return *s.rootCache, nil
	}

	result, err := s.getCommandOutput([]string{"root"}, nil)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", commandFailedError(s.id, []string{"root"}, result)
	}

	root := strings.TrimSpace(result.Stdout)
	s.rootCache = &root
	return root, nil
}

// Version returns the normalized Mercurial version string, populated
// on first read and cached for the life of the session.
func (s *Session) Version() (string, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.versionCache != nil {
		return *s.versionCache, nil
	}

	result, err := s.getCommandOutput([]string{"version"}, nil)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", commandFailedError(s.id, []string{"version"}, result)
	}

	version, err := parseVersion(result.Stdout)
	if err != nil {
		return "", err
	}
	s.versionCache = &version
	return version, nil
}

// Configuration returns the repository's effective configuration
// (hg showconfig), populated on first read and cached for the life of
// the session.
func (s *Session) Configuration() (map[string]string, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.configCache != nil {
		return s.configCache, nil
	}

	result, err := s.getCommandOutput([]string{"showconfig"}, nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, commandFailedError(s.id, []string{"showconfig"}, result)
	}

	cfg := parseDelimited(result.Stdout, []string{"="})
	s.configCache = cfg
	return cfg, nil
}

func joinConfigPairs(configs map[string]string) string {
	keys := make([]string, 0, len(configs))
	for k := range configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(configs))
	for _, k := range keys {
		pairs = append(pairs, k+"="+configs[k])
	}
	return strings.Join(pairs, ",")
}
