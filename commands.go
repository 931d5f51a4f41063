package hgclient

import (
	"strconv"
	"strings"
	"time"
)

var exitCodesZero = map[int32]bool{0: true}
var exitCodesZeroOne = map[int32]bool{0: true, 1: true}

func (s *Session) enforceExitCode(argv []string, result CommandResult, allowed map[int32]bool) error {
	if !allowed[result.ExitCode] {
		return commandFailedError(s.id, argv, result)
	}
	return nil
}

func requireNonEmpty(name string, values []string) error {
	if len(values) == 0 {
		return newErrorf(InvalidArgument, nil, "%s requires at least one value", name)
	}
	return nil
}

func withXMLStyle(argv []string) []string {
	return append(argv, "--style", "xml")
}

// AddOptions configures Add.
type AddOptions struct {
	Include  []string
	Exclude  []string
	DryRun   bool
	Subrepos bool
}

// Add stages files for the next commit.
func (s *Session) Add(files []string, opts AddOptions) error {
	argv := []string{"add"}
	argv = append(argv, files...)
	argv = addAllPairIfNonEmpty(argv, "--include", opts.Include)
	argv = addAllPairIfNonEmpty(argv, "--exclude", opts.Exclude)
	argv = addIf(argv, opts.DryRun, "--dry-run")
	argv = addIf(argv, opts.Subrepos, "--subrepos")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// Forget un-tracks files, requiring at least one.
func (s *Session) Forget(files []string) error {
	if err := requireNonEmpty("forget", files); err != nil {
		return err
	}
	argv := append([]string{"forget"}, files...)
	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// RemoveOptions configures Remove.
type RemoveOptions struct {
	Force bool
	After bool
}

// Remove deletes and un-tracks files, requiring at least one.
func (s *Session) Remove(files []string, opts RemoveOptions) error {
	if err := requireNonEmpty("remove", files); err != nil {
		return err
	}
	argv := []string{"remove"}
	argv = append(argv, files...)
	argv = addIf(argv, opts.Force, "--force")
	argv = addIf(argv, opts.After, "--after")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// RevertOptions configures Revert.
type RevertOptions struct {
	Rev      string
	All      bool
	NoBackup bool
}

// Revert restores files to an earlier revision.
func (s *Session) Revert(files []string, opts RevertOptions) error {
	argv := []string{"revert"}
	argv = append(argv, files...)
	argv = addPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.All, "--all")
	argv = addIf(argv, opts.NoBackup, "--no-backup")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// RenameOptions configures Rename.
type RenameOptions struct {
	Force bool
	After bool
}

// Rename moves source to dest (hg mv).
func (s *Session) Rename(source, dest string, opts RenameOptions) error {
	argv := []string{"rename", source, dest}
	argv = addIf(argv, opts.Force, "--force")
	argv = addIf(argv, opts.After, "--after")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// ExportOptions configures Export.
type ExportOptions struct {
	Output string
	Git    bool
}

// Export renders revisions as patches, requiring at least one revision.
func (s *Session) Export(revisions []string, opts ExportOptions) (string, error) {
	if err := requireNonEmpty("export", revisions); err != nil {
		return "", err
	}
	argv := append([]string{"export"}, revisions...)
	argv = addPairIfNonEmpty(argv, "--output", opts.Output)
	argv = addIf(argv, opts.Git, "--git")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return "", err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// AnnotateOptions configures Annotate.
type AnnotateOptions struct {
	Rev       string
	User      bool
	Date      bool
	Number    bool
	Changeset bool
}

// Annotate shows per-line revision/author attribution, requiring at
// least one file.
func (s *Session) Annotate(files []string, opts AnnotateOptions) (string, error) {
	if err := requireNonEmpty("annotate", files); err != nil {
		return "", err
	}
	argv := []string{"annotate"}
	argv = append(argv, files...)
	argv = addPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.User, "--user")
	argv = addIf(argv, opts.Date, "--date")
	argv = addIf(argv, opts.Number, "--number")
	argv = addIf(argv, opts.Changeset, "--changeset")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return "", err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// DiffOptions configures Diff.
type DiffOptions struct {
	Rev    []string
	Change string
	Git    bool
}

// Diff renders a unified diff for files (all tracked files if empty).
func (s *Session) Diff(files []string, opts DiffOptions) (string, error) {
	argv := []string{"diff"}
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addPairIfNonEmpty(argv, "--change", opts.Change)
	argv = addIf(argv, opts.Git, "--git")
	argv = append(argv, files...)

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return "", err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// ArchiveOptions configures Archive.
type ArchiveOptions struct {
	Type    ArchiveType
	Rev     string
	Prefix  string
	Include []string
	Exclude []string
}

// Archive packages the repository at destination, which must be non-empty.
func (s *Session) Archive(destination string, opts ArchiveOptions) error {
	if destination == "" {
		return newErrorf(InvalidArgument, nil, "archive requires a non-empty destination")
	}
	argv := []string{"archive", destination}
	if flag := opts.Type.flag(); flag != "" {
		argv = append(argv, "--type", flag)
	}
	argv = addPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addPairIfNonEmpty(argv, "--prefix", opts.Prefix)
	argv = addAllPairIfNonEmpty(argv, "--include", opts.Include)
	argv = addAllPairIfNonEmpty(argv, "--exclude", opts.Exclude)

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return err
	}
	return s.enforceExitCode(argv, result, exitCodesZero)
}

// Cat returns the content of each file at rev (or the working
// directory parent if rev is empty), issuing a separate invocation
// per file.
func (s *Session) Cat(files []string, rev string) (map[string]string, error) {
	if err := requireNonEmpty("cat", files); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(files))
	for _, file := range files {
		argv := []string{"cat", file}
		argv = addPairIfNonEmpty(argv, "--rev", rev)

		result, err := s.getCommandOutput(argv, nil)
		if err != nil {
			return nil, err
		}
		if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
			return nil, err
		}
		out[file] = result.Stdout
	}
	return out, nil
}

// Summary reports the working-directory summary, optionally checking
// the remote for incoming/outgoing changes.
func (s *Session) Summary(remote bool) (string, error) {
	argv := []string{"summary"}
	argv = addIf(argv, remote, "--remote")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return "", err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// CommitOptions configures Commit.
type CommitOptions struct {
	Message   string
	User      string
	Date      *time.Time
	AddRemove bool
	Close     bool
}

// Commit records a new changeset. Exit code 1 ("nothing changed") is
// not an error.
func (s *Session) Commit(opts CommitOptions) (bool, error) {
	argv := []string{"commit"}
	argv = addPairIfNonEmpty(argv, "--message", opts.Message)
	argv = addPairIfNonEmpty(argv, "--user", opts.User)
	argv = addDateIf(argv, "--date", opts.Date)
	argv = addIf(argv, opts.AddRemove, "--addremove")
	argv = addIf(argv, opts.Close, "--close-branch")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// MergeOptions configures Merge.
type MergeOptions struct {
	Rev   string
	Force bool
	Tool  string
}

// Merge merges rev into the working directory.
func (s *Session) Merge(opts MergeOptions) (bool, error) {
	argv := []string{"merge"}
	argv = addPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.Force, "--force")
	argv = addPairIfNonEmpty(argv, "--tool", opts.Tool)

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// PullOptions configures Pull.
type PullOptions struct {
	Source string
	Rev    []string
	Update bool
	Force  bool
}

// Pull fetches changesets from source (or the default path if empty).
func (s *Session) Pull(opts PullOptions) (bool, error) {
	argv := []string{"pull"}
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.Update, "--update")
	argv = addIf(argv, opts.Force, "--force")
	if opts.Source != "" {
		argv = append(argv, opts.Source)
	}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// PushOptions configures Push.
type PushOptions struct {
	Destination string
	Rev         []string
	Force       bool
	NewBranch   bool
}

// Push sends changesets to destination (or the default path if empty).
func (s *Session) Push(opts PushOptions) (bool, error) {
	argv := []string{"push"}
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.Force, "--force")
	argv = addIf(argv, opts.NewBranch, "--new-branch")
	if opts.Destination != "" {
		argv = append(argv, opts.Destination)
	}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// UpdateOptions configures Update.
type UpdateOptions struct {
	Rev   string
	Clean bool
	Check bool
}

// Update moves the working directory to rev.
func (s *Session) Update(opts UpdateOptions) (bool, error) {
	argv := []string{"update"}
	argv = addPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.Clean, "--clean")
	argv = addIf(argv, opts.Check, "--check")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// IncomingOptions configures Incoming.
type IncomingOptions struct {
	Source string
	Rev    []string
	Limit  int
}

// Incoming lists changesets that would be pulled from source. Exit
// code 1 means "no changes found".
func (s *Session) Incoming(opts IncomingOptions) ([]Revision, error) {
	argv := withXMLStyle([]string{"incoming"})
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	if opts.Limit > 0 {
		argv = append(argv, "--limit", strconv.Itoa(opts.Limit))
	}
	if opts.Source != "" {
		argv = append(argv, opts.Source)
	}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return nil, err
	}
	if result.ExitCode == 1 {
		return nil, nil
	}
	return parseLogXML(result.Stdout)
}

// HeadsOptions configures Heads.
type HeadsOptions struct {
	Rev  []string
	Topo bool
}

// Heads lists the repository's (or a branch's) head revisions. Exit
// code 1 means "no matching heads".
func (s *Session) Heads(opts HeadsOptions) ([]Revision, error) {
	argv := withXMLStyle([]string{"heads"})
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addIf(argv, opts.Topo, "--topo")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZeroOne); err != nil {
		return nil, err
	}
	if result.ExitCode == 1 {
		return nil, nil
	}
	return parseLogXML(result.Stdout)
}

// Rollback undoes the last transaction. Any exit code is accepted; the
// returned bool reflects success.
func (s *Session) Rollback(force bool) (bool, error) {
	argv := []string{"rollback"}
	argv = addIf(argv, force, "--force")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// StatusOptions configures Status.
type StatusOptions struct {
	Rev      []string
	Include  []string
	Exclude  []string
	Statuses []FileStatus
}

// Status reports the working-directory file status map.
func (s *Session) Status(opts StatusOptions) (map[string]FileStatus, error) {
	argv := []string{"status"}
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	argv = addAllPairIfNonEmpty(argv, "--include", opts.Include)
	argv = addAllPairIfNonEmpty(argv, "--exclude", opts.Exclude)

	var flags strings.Builder
	for _, st := range opts.Statuses {
		if flag, ok := flagForFileStatus(st); ok {
			flags.WriteByte(flag)
		}
	}
	if flags.Len() > 0 {
		argv = append(argv, "-"+flags.String())
	}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseStatusLines(result.Stdout), nil
}

// LogOptions configures Log.
type LogOptions struct {
	Rev     []string
	Limit   int
	Branch  string
	Include []string
	Exclude []string
	Follow  bool
}

// Log returns matching revisions in document order, newest first.
func (s *Session) Log(opts LogOptions) ([]Revision, error) {
	argv := withXMLStyle([]string{"log"})
	argv = addAllPairIfNonEmpty(argv, "--rev", opts.Rev)
	if opts.Limit > 0 {
		argv = append(argv, "--limit", strconv.Itoa(opts.Limit))
	}
	argv = addPairIfNonEmpty(argv, "--branch", opts.Branch)
	argv = addAllPairIfNonEmpty(argv, "--include", opts.Include)
	argv = addAllPairIfNonEmpty(argv, "--exclude", opts.Exclude)
	argv = addIf(argv, opts.Follow, "--follow")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseLogXML(result.Stdout)
}

// Outgoing lists changesets that would be pushed to destination.
func (s *Session) Outgoing(destination string, rev []string) ([]Revision, error) {
	argv := withXMLStyle([]string{"outgoing"})
	argv = addAllPairIfNonEmpty(argv, "--rev", rev)
	if destination != "" {
		argv = append(argv, destination)
	}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseLogXML(result.Stdout)
}

// Parents returns the working directory's (or files') parent revisions.
func (s *Session) Parents(files []string, rev string) ([]Revision, error) {
	argv := withXMLStyle([]string{"parents"})
	argv = addPairIfNonEmpty(argv, "--rev", rev)
	argv = append(argv, files...)

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseLogXML(result.Stdout)
}

// Paths returns the configured remote path aliases.
func (s *Session) Paths() (map[string]string, error) {
	argv := []string{"paths"}

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseDelimited(result.Stdout, []string{"="}), nil
}

// ResolveOptions configures Resolve.
type ResolveOptions struct {
	Mark   bool
	Unmark bool
}

// Resolve lists or marks merge-conflict resolution state for files (all
// files in the merge state, resolved or not, if empty).
func (s *Session) Resolve(files []string, opts ResolveOptions) (map[string]bool, error) {
	argv := []string{"resolve", "--list"}
	argv = append(argv, files...)
	argv = addIf(argv, opts.Mark, "--mark")
	argv = addIf(argv, opts.Unmark, "--unmark")

	result, err := s.getCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enforceExitCode(argv, result, exitCodesZero); err != nil {
		return nil, err
	}
	return parseResolveList(result.Stdout), nil
}
