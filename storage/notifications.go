package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

type notificationEntity struct {
	aztables.Entity
	Sender    string `json:"Sender"`
	Kind      string `json:"Kind"`
	Message   string `json:"Message"`
	RelatedID string `json:"RelatedId"`
	ProjectID string `json:"ProjectId"`
	Read      bool   `json:"Read"`
	CreatedAt string `json:"CreatedAt"`
}

func entityToNotification(data []byte) (domain.Notification, error) {
	var ent notificationEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		ID:        ent.RowKey,
		Recipient: ent.PartitionKey,
		Sender:    ent.Sender,
		Kind:      ent.Kind,
		Message:   ent.Message,
		RelatedID: ent.RelatedID,
		ProjectID: ent.ProjectID,
		Read:      ent.Read,
	}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Notification{}, err
		}
		n.CreatedAt = created
	}
	return n, nil
}

// InsertNotification persists an in-app notification, partitioned by
// recipient.
func (s *Storage) InsertNotification(ctx context.Context, n domain.Notification) error {
	ent := notificationEntity{
		Entity:    aztables.Entity{PartitionKey: n.Recipient, RowKey: n.ID},
		Sender:    n.Sender,
		Kind:      n.Kind,
		Message:   n.Message,
		RelatedID: n.RelatedID,
		ProjectID: n.ProjectID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.notificationTable.AddEntity(ctx, payload, nil)
	return err
}

func (s *Storage) listNotifications(ctx context.Context, recipient, extraFilter string) ([]domain.Notification, error) {
	filter := "PartitionKey eq '" + escapeFilter(recipient) + "'" + extraFilter
	pager := s.notificationTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	out := []domain.Notification{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			n, err := entityToNotification(e)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListNotifications returns the recipient's notifications, newest first,
// capped at limit when limit > 0.
func (s *Storage) ListNotifications(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	out, err := s.listNotifications(ctx, recipient, "")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UnreadCount returns how many of the recipient's notifications are unread.
func (s *Storage) UnreadCount(ctx context.Context, recipient string) (int, error) {
	out, err := s.listNotifications(ctx, recipient, " and Read eq false")
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// MarkRead marks one notification as read and returns it.
func (s *Storage) MarkRead(ctx context.Context, recipient, id string) (*domain.Notification, error) {
	resp, err := s.notificationTable.GetEntity(ctx, recipient, id, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	n, err := entityToNotification(resp.Value)
	if err != nil {
		return nil, err
	}
	if !n.Read {
		if err := s.markRead(ctx, recipient, id); err != nil {
			return nil, err
		}
		n.Read = true
	}
	return &n, nil
}

// MarkAllRead marks every unread notification of the recipient as read.
func (s *Storage) MarkAllRead(ctx context.Context, recipient string) error {
	unread, err := s.listNotifications(ctx, recipient, " and Read eq false")
	if err != nil {
		return err
	}
	for _, n := range unread {
		if err := s.markRead(ctx, recipient, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) markRead(ctx context.Context, recipient, id string) error {
	patch := struct {
		aztables.Entity
		Read bool `json:"Read"`
	}{
		Entity: aztables.Entity{PartitionKey: recipient, RowKey: id},
		Read:   true,
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.notificationTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	return err
}
