package poolswitcher

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
)

// Bitmain S19-series firmware: Vue single-page UI behind HTTP basic auth.
// The "Miner Configuration" menu item doubles as the post-login landmark.
var (
	antMinerMenu = browser.CSS("li.item[data-id='miner']")
	antPoolForm  = browser.CSS("#poolForm")
	antPoolRows  = browser.CSS("#poolTable tbody tr")
	antSuccess   = browser.CSS(".message.success")
	antRestart   = browser.CSS("#restart")
	antConfirm   = browser.CSS("#restartFun")

	// Save button ids drift across firmware revisions; earlier alias wins.
	antSaveAliases = []browser.Selector{
		browser.CSS("input.btn-blue[data-i18n-value='save']"),
		browser.CSS("input.btn-blue[value='Save']"),
		browser.XPath("//input[@type='button' and contains(@value,'Save')]"),
	}
)

type antminerDriver struct {
	cfg   DeviceConfig
	waits Waits
}

func newAntminerDriver(cfg DeviceConfig, waits Waits) *antminerDriver {
	return &antminerDriver{cfg: cfg, waits: waits.withDefaults()}
}

func (d *antminerDriver) Login(ctx context.Context, s browser.Session) error {
	target := fmt.Sprintf("http://%s:%s@%s/",
		url.QueryEscape(d.cfg.Username), url.QueryEscape(d.cfg.Password), d.cfg.IP)
	if err := s.Navigate(ctx, target); err != nil {
		return protocolErr(FailSession, err, "reach %s", d.cfg.IP)
	}
	if err := s.WaitVisible(ctx, antMinerMenu, d.waits.Landmark); err != nil {
		return protocolErr(FailAuthentication, err, "miner menu not visible after basic auth")
	}
	return nil
}

func (d *antminerDriver) OpenPoolPage(ctx context.Context, s browser.Session) error {
	if err := s.Click(ctx, antMinerMenu); err != nil {
		return protocolErr(FailNavigation, err, "open miner configuration tab")
	}
	if err := s.WaitVisible(ctx, antPoolForm, d.waits.Landmark); err != nil {
		return protocolErr(FailNavigation, err, "pool form not visible")
	}
	return nil
}

func (d *antminerDriver) ApplyPool(ctx context.Context, s browser.Session, pool Pool, slot int) error {
	rows, err := s.Count(ctx, antPoolRows)
	if err != nil {
		return err
	}
	if slot < 1 || slot > rows {
		return protocolErr(FailSlotOutOfRange, nil, "slot %d out of range (rows=%d)", slot, rows)
	}
	// The slot row carries three bare inputs: address, worker, password.
	for i, val := range []string{pool.URL, pool.Worker, pool.Password} {
		input := browser.XPath(fmt.Sprintf(`(//*[@id="poolTable"]/tbody/tr[%d]//input)[%d]`, slot, i+1))
		if err := setField(ctx, s, val, input); err != nil {
			return err
		}
	}
	return nil
}

func (d *antminerDriver) Save(ctx context.Context, s browser.Session) error {
	if err := clickFirst(ctx, s, antSaveAliases...); err != nil {
		return err
	}
	// Some firmware never shows the banner; absence is not a failure.
	if err := s.WaitVisible(ctx, antSuccess, d.waits.Confirm); err != nil {
		if browser.IsTimeout(err) {
			log.Debug().Str("miner", d.cfg.Name).Msg("no save confirmation banner, assuming applied")
			return nil
		}
		return err
	}
	return nil
}

func (d *antminerDriver) Reboot(ctx context.Context, s browser.Session) error {
	if err := clickFirst(ctx, s, antRestart); err != nil {
		return err
	}
	// A confirmation popup usually follows; older firmware reboots directly.
	if err := s.WaitEnabled(ctx, antConfirm, d.waits.Confirm); err != nil {
		if browser.IsTimeout(err) {
			log.Debug().Str("miner", d.cfg.Name).Msg("no reboot confirmation dialog, assuming restarting")
			return nil
		}
		return err
	}
	return s.Click(ctx, antConfirm)
}
