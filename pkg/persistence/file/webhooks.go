package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
)

// WebhookRepository stores each registration as <root>/webhooks/<key>.json.
type WebhookRepository struct {
	root string
}

func NewWebhookRepository(root string) *WebhookRepository {
	return &WebhookRepository{root: root}
}

// Webhooks lists every stored registration.
func (r *WebhookRepository) Webhooks(ctx context.Context) ([]*models.Webhook, error) {
	dir := os.DirFS(path.Join(r.root, "webhooks"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook files: %w", err)
	}

	webhooks := make([]*models.Webhook, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		key := file[:len(file)-5]

		webhook, err := r.WebhookByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load webhook %s: %w", key, err)
		}

		webhooks = append(webhooks, webhook)
	}

	return webhooks, nil
}

// WebhookByKey reads one registration document from disk.
func (r *WebhookRepository) WebhookByKey(_ context.Context, key string) (*models.Webhook, error) {
	filePath := filepath.Clean(path.Join(r.root, "webhooks", key+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWebhookNotFound
		}

		return nil, fmt.Errorf("failed to fetch webhook %s: %w", key, err)
	}

	var webhook models.Webhook

	if err := json.Unmarshal(body, &webhook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook %s: %w", key, err)
	}

	return &webhook, nil
}

// SaveWebhook writes the registration document.
func (r *WebhookRepository) SaveWebhook(_ context.Context, webhook *models.Webhook) error {
	if err := os.MkdirAll(path.Join(r.root, "webhooks"), 0750); err != nil {
		return fmt.Errorf("failed to create webhooks directory: %w", err)
	}

	webhook.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(webhook, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal webhook %s: %w", webhook.Key, err)
	}

	filePath := path.Join(r.root, "webhooks", webhook.Key+".json")

	return os.WriteFile(filePath, data, 0600)
}

// DeleteWebhook removes the registration document.
func (r *WebhookRepository) DeleteWebhook(_ context.Context, key string) error {
	filePath := path.Join(r.root, "webhooks", key+".json")

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrWebhookNotFound
		}

		return fmt.Errorf("failed to delete webhook %s: %w", key, err)
	}

	return nil
}

// RecordCall bumps the usage counters with a read-modify-write.
func (r *WebhookRepository) RecordCall(ctx context.Context, key string) error {
	webhook, err := r.WebhookByKey(ctx, key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	webhook.CallCount++
	webhook.LastCalledAt = &now

	return r.SaveWebhook(ctx, webhook)
}
