package cdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/config"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/report"
)

const report_setup = "opener.setup"

// Opener prepares report pages in browser tabs using the per report page
// settings. It implements report.Opener.
type Opener struct {
	client   *Client
	pages    map[string]config.PageConfig
	sessions map[string]*Session
}

func NewOpener(client *Client, pages map[string]config.PageConfig) *Opener {
	return &Opener{
		client:   client,
		pages:    pages,
		sessions: map[string]*Session{},
	}
}

// SetupScript substitutes the date range into a page's setup script.
func SetupScript(script string, dates chrono.DateRange) string {
	return strings.NewReplacer(
		"{start}", dates.Start.Format(chrono.SlashDateLayout),
		"{end}", dates.End.Format(chrono.SlashDateLayout),
	).Replace(script)
}

func (o *Opener) session(ctx context.Context, urlPart string) (*Session, error) {
	target, err := o.client.FindTarget(ctx, urlPart)
	if err != nil {
		return nil, err
	}
	if s, ok := o.sessions[target.ID]; ok {
		return s, nil
	}
	s, err := o.client.Attach(ctx, target)
	if err != nil {
		return nil, err
	}
	o.sessions[target.ID] = s
	return s, nil
}

func (o *Opener) Open(ctx context.Context, kind records.EntityType, dates chrono.DateRange) (report.PageSource, error) {
	ctx, span := tracer.Start(ctx, "Open")
	defer span.End()

	cfg, ok := o.pages[string(kind)]
	if !ok {
		return nil, fmt.Errorf("no browser page configured for %s reports", kind)
	}
	session, err := o.session(ctx, cfg.TargetUrl)
	if err != nil {
		return nil, err
	}

	page := NewPage(session, cfg.FrameSelector, cfg.TableSelector, time.Duration(cfg.SettleMs)*time.Millisecond)
	if cfg.SetupScript != "" {
		if err := session.Evaluate(ctx, SetupScript(cfg.SetupScript, dates), nil); err != nil {
			o.client.tel.ReportBroken(report_setup, kind, dates.String(), err)
			return nil, fmt.Errorf("set up %s report for %s: %w", kind, dates, err)
		}
	}
	if err := page.Wait(ctx); err != nil {
		return nil, err
	}
	return page, nil
}

// Close detaches every session.
func (o *Opener) Close() {
	for id, s := range o.sessions {
		s.Close()
		delete(o.sessions, id)
	}
}
