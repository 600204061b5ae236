package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/internal/policy"
)

// openFileCacheTTL bounds how stale the open-file snapshot may be.
const openFileCacheTTL = 5 * time.Second

// Options adjust the auditor's final gate.
type Options struct {
	// Aggressive allows risk scores >= riskDenyThreshold through when
	// the item's safety score is at least aggressiveSafetyFloor.
	Aggressive bool
	// Home is the user's home directory for the risk heuristics.
	Home string
}

const (
	riskDenyThreshold     = 70
	aggressiveSafetyFloor = 80
)

// Auditor gates every candidate deletion. Every error path resolves to
// deny; the auditor never fails open.
type Auditor struct {
	policy    *policy.Policy
	opts      Options
	openFiles *openFileIndex
}

// New builds an Auditor over the given path policy.
func New(p *policy.Policy, opts Options) *Auditor {
	return &Auditor{
		policy:    p,
		opts:      opts,
		openFiles: newOpenFileIndex(openFileCacheTTL),
	}
}

// Audit decides whether the item may be deleted. A nil return is an
// allow; every deny carries a reason code and risk class. confirmed
// marks candidates the caller has explicitly approved, which lifts only
// the sensitive-pattern denial.
func (a *Auditor) Audit(ctx context.Context, item *model.CleanableItem, confirmed bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled("audit", err)
	}

	// 1. Critical path: absolute deny, no override.
	if a.policy.IsCritical(item.Path) {
		return errors.Denied("critical_path", errors.RiskCritical,
			"path is under a protected system or security directory")
	}

	// 2. Sensitive name: deny unless explicitly confirmed.
	if a.policy.IsSensitive(item.Name) && !confirmed {
		return errors.DeniedConfirmable("sensitive_pattern", errors.RiskHigh,
			"filename matches a sensitive pattern and was not confirmed")
	}

	// 3. Symlink to a critical target. The policy checks above run on
	// the path alone, so a missing file still gets the critical and
	// sensitive verdicts before the not-found outcome.
	info, err := os.Lstat(item.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(item.Path)
		}
		return errors.Denied("audit_error", errors.RiskHigh, "cannot inspect path: "+err.Error())
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(item.Path)
		if err != nil {
			// An unresolvable target may be hiding a critical one
			// behind a permission error; never fall through to allow.
			return errors.Denied("symlink_unresolvable", errors.RiskHigh,
				"cannot resolve symlink target: "+err.Error())
		}
		if a.policy.IsCritical(target) {
			return errors.Denied("symlink_to_critical", errors.RiskCritical,
				"symlink resolves into a protected directory")
		}
	}

	// 4. Live handle on the file.
	if a.openFiles.InUse(ctx, item.Path) {
		return errors.Denied("in_use", errors.RiskHigh, "a running process holds the file open")
	}

	// 5. Deleting requires write access to the parent directory.
	parent := filepath.Dir(item.Path)
	if err := unix.Access(parent, unix.W_OK); err != nil {
		return errors.Denied("not_writable", errors.RiskHigh,
			"no write permission on "+parent)
	}

	// 6. Heuristic risk gate.
	return a.gateRisk(item)
}

// gateRisk denies items whose heuristic risk crosses the threshold,
// unless aggressive mode is on and the safety score vouches for them.
func (a *Auditor) gateRisk(item *model.CleanableItem) error {
	if a.riskScore(item) < riskDenyThreshold {
		return nil
	}
	if a.opts.Aggressive && item.SafetyScore >= aggressiveSafetyFloor {
		return nil
	}
	return errors.Denied("risk_score", errors.RiskMedium,
		"heuristic risk score too high for the current mode")
}

// riskScore estimates how risky deleting the item is, 0-100; the summed
// contributions are capped at 100. Higher is riskier; the scale is
// independent of the safety score.
func (a *Auditor) riskScore(item *model.CleanableItem) int {
	risk := 0
	if a.opts.Home != "" && strings.HasPrefix(item.Path, a.opts.Home+string(os.PathSeparator)) {
		risk += 10
	}
	if strings.HasPrefix(item.Path, "/Library") || strings.HasPrefix(item.Path, "/System") {
		risk += 50
	}
	age := time.Since(item.ModTime)
	switch {
	case age < 7*24*time.Hour:
		risk += 30
	case age < 30*24*time.Hour:
		risk += 20
	}
	switch {
	case item.Size > 1<<30:
		risk += 25
	case item.Size > 100<<20:
		risk += 15
	}
	if risk > 100 {
		risk = 100
	}
	return risk
}
