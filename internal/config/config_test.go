package config

import (
	"strings"
	"testing"

	poolswitcher "github.com/jig0901/Bitcoin-Mining-Pool-Switcher"
)

const sampleYAML = `
timezone: America/Chicago
miners:
  - name: ant01
    ip: 192.168.1.50
    type: antminer
    pools:
      solo:
        url: stratum+tcp://solo.example:3333
        worker: rig.1
  - name: whats01
    ip: 192.168.1.51
    type: whatsminer
    username: admin
    password: secret
    pools:
      solo:
        url: stratum+tcp://solo.example:3333
        worker: rig.2
        password: hunter2
schedule:
  - cron: "0 6 * * *"
    pool_key: solo
`

func TestParseAppliesDefaults(t *testing.T) {
	file, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if file.Timezone != "America/Chicago" {
		t.Fatalf("timezone: got %q", file.Timezone)
	}
	if len(file.Miners) != 2 || len(file.Schedule) != 1 {
		t.Fatalf("unexpected counts: %d miners, %d schedule entries", len(file.Miners), len(file.Schedule))
	}

	ant := file.Miners[0]
	if ant.Username != "root" || ant.Password != "admin" {
		t.Fatalf("expected factory credentials, got %s/%s", ant.Username, ant.Password)
	}
	if ant.Pools["solo"].Password != "x" {
		t.Fatalf("expected default pool password x, got %q", ant.Pools["solo"].Password)
	}

	whats := file.Miners[1]
	if whats.Username != "admin" || whats.Password != "secret" {
		t.Fatalf("explicit credentials overwritten: %s/%s", whats.Username, whats.Password)
	}
	if whats.Pools["solo"].Password != "hunter2" {
		t.Fatalf("explicit pool password overwritten: %q", whats.Pools["solo"].Password)
	}
	if whats.Kind != poolswitcher.KindWhatsminer {
		t.Fatalf("kind: got %q", whats.Kind)
	}
}

func TestParseRejectsEmptyFleet(t *testing.T) {
	if _, err := Parse([]byte("timezone: UTC\n")); err == nil {
		t.Fatalf("expected error for empty miners list")
	}
}

func TestParseRejectsPoolWithoutWorker(t *testing.T) {
	bad := `
miners:
  - name: ant01
    ip: 192.168.1.50
    pools:
      solo:
        url: stratum+tcp://solo.example:3333
`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "worker") {
		t.Fatalf("error should mention the missing worker: %v", err)
	}
}

func TestParseRejectsScheduleWithoutPoolKey(t *testing.T) {
	bad := `
miners:
  - name: ant01
    ip: 192.168.1.50
schedule:
  - cron: "0 6 * * *"
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatalf("expected schedule validation error")
	}
}

func TestParseRejectsMinerWithoutIP(t *testing.T) {
	bad := `
miners:
  - name: ant01
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatalf("expected error for miner without ip")
	}
}
