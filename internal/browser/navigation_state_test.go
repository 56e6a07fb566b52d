// internal/browser/navigation_state_test.go
package browser

import (
	"context"
	"strings"
	"testing"
)

func TestChromeClient_NavigationStateTracking(t *testing.T) {
	config := DefaultBrowserConfig()
	client, err := NewChromeClient(config)
	if err != nil {
		t.Skipf("Skipping browser test: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Querying before any navigation must fail instead of reading about:blank
	_, err = client.QueryAll(ctx, "article")
	if err == nil {
		t.Fatal("Expected error when querying before successful navigation")
	}
	if !strings.Contains(err.Error(), "navigation has not completed successfully") {
		t.Errorf("Expected navigation state error, got: %v", err)
	}
}
