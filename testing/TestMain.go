package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("WASTETRACK_TEST_MODE", "1")
		if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
			// Tests must never reach the SMS provider.
			_ = os.Unsetenv("TWILIO_ACCOUNT_SID")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
