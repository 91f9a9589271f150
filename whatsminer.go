package poolswitcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
)

// MicroBT Whatsminer: server-rendered LuCI admin UI behind a login form.
var (
	whatsLoginUser = browser.Name("username")
	whatsLoginPass = browser.Name("password")
	whatsLoginBtn  = browser.XPath("//button[@type='submit' or @value='Login']")
	whatsConfirm   = browser.XPath("//input[@type='submit']")
	whatsProgress  = browser.CSS(".alert-message, .cbi-progressbar")

	whatsSaveAliases = []browser.Selector{
		browser.CSS("input.cbi-button-save"),
		browser.Name("cbi.apply"),
		browser.XPath("//input[@type='submit' and contains(@value,'Save')]"),
	}
)

type whatsminerDriver struct {
	cfg   DeviceConfig
	waits Waits
}

func newWhatsminerDriver(cfg DeviceConfig, waits Waits) *whatsminerDriver {
	return &whatsminerDriver{cfg: cfg, waits: waits.withDefaults()}
}

func (d *whatsminerDriver) Login(ctx context.Context, s browser.Session) error {
	if err := s.Navigate(ctx, fmt.Sprintf("http://%s/cgi-bin/luci", d.cfg.IP)); err != nil {
		return protocolErr(FailSession, err, "reach %s", d.cfg.IP)
	}
	if err := s.WaitVisible(ctx, whatsLoginUser, d.waits.Landmark); err != nil {
		return protocolErr(FailAuthentication, err, "login form not visible")
	}
	if err := s.SetValue(ctx, whatsLoginUser, d.cfg.Username); err != nil {
		return err
	}
	if err := s.SetValue(ctx, whatsLoginPass, d.cfg.Password); err != nil {
		return err
	}
	if err := s.Click(ctx, whatsLoginBtn); err != nil {
		return protocolErr(FailAuthentication, err, "submit login form")
	}
	return nil
}

func (d *whatsminerDriver) OpenPoolPage(ctx context.Context, s browser.Session) error {
	target := fmt.Sprintf("http://%s/cgi-bin/luci/admin/network/btminer", d.cfg.IP)
	if err := s.Navigate(ctx, target); err != nil {
		return protocolErr(FailNavigation, err, "open btminer page")
	}
	// The first pool's url field is the page landmark.
	if err := s.WaitVisible(ctx, browser.ID("cbid.btminer.1.url"), d.waits.Landmark); err != nil {
		return protocolErr(FailNavigation, err, "btminer form not visible")
	}
	return nil
}

// ApplyPool resolves the slot by substituting it into LuCI's template ids.
// No upper bound is discoverable ahead of time, so an out-of-range slot
// surfaces as field_not_found rather than slot_out_of_range.
func (d *whatsminerDriver) ApplyPool(ctx context.Context, s browser.Session, pool Pool, slot int) error {
	primary := fmt.Sprintf("cbid.btminer.%d", slot)
	fallback := fmt.Sprintf("cbid.table.%d", slot)
	fields := []struct {
		suffix string
		value  string
	}{
		{"url", pool.URL},
		{"user", pool.Worker},
		{"pass", pool.Password},
	}
	for _, f := range fields {
		err := setField(ctx, s, f.value,
			browser.ID(primary+"."+f.suffix),
			browser.ID(fallback+"."+f.suffix))
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *whatsminerDriver) Save(ctx context.Context, s browser.Session) error {
	if err := clickFirst(ctx, s, whatsSaveAliases...); err != nil {
		return err
	}
	// LuCI shows either an alert banner or an apply progress bar; neither is
	// guaranteed, so a quiet save is accepted.
	if err := s.WaitVisible(ctx, whatsProgress, d.waits.Confirm); err != nil {
		if browser.IsTimeout(err) {
			log.Debug().Str("miner", d.cfg.Name).Msg("no apply feedback from luci, assuming saved")
			return nil
		}
		return err
	}
	return nil
}

func (d *whatsminerDriver) Reboot(ctx context.Context, s browser.Session) error {
	target := fmt.Sprintf("http://%s/cgi-bin/luci/admin/status/btminerstatus/restart", d.cfg.IP)
	if err := s.Navigate(ctx, target); err != nil {
		return protocolErr(FailNavigation, err, "open restart page")
	}
	// Some builds restart immediately, others interpose a confirm form.
	if err := s.WaitEnabled(ctx, whatsConfirm, d.waits.Confirm); err != nil {
		if browser.IsTimeout(err) {
			log.Debug().Str("miner", d.cfg.Name).Msg("no restart confirmation form, assuming restarting")
			return nil
		}
		return err
	}
	return s.Click(ctx, whatsConfirm)
}
