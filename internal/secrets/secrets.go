package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "applypilot"

	AccountGemini   = "gemini_api_key"
	AccountBotToken = "telegram_bot_token"
)

// Get reads a secret from the keychain, falling back to an env var so
// headless hosts without a keyring daemon still work.
func Get(account, envVar string) (string, error) {
	if strings.TrimSpace(account) != "" {
		v, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	if envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %q not found (set it in the keychain or via %s)", account, envVar)
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

func PortalAccount(username, baseURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	host, _, _ = strings.Cut(host, "/")
	return fmt.Sprintf("applypilot:portal:%s@%s", username, host)
}

func IMAPAccount(username, host string) string {
	return fmt.Sprintf("applypilot:imap:%s@%s", username, host)
}
