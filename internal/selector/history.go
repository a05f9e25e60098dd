package selector

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/store"
)

// HistoryStore persists the per-user shuffle history as a JSON array of IDs,
// oldest first
type HistoryStore struct {
	kv        domain.KV
	seedLimit int
	logger    *slog.Logger
}

// NewHistoryStore creates a history store over kv
func NewHistoryStore(kv domain.KV, seedLimit int, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{kv: kv, seedLimit: seedLimit, logger: logger}
}

// Load returns the stored history, or nil when missing or unreadable
func (h *HistoryStore) Load(userID string) []string {
	data, ok, err := store.ForUser(h.kv, userID).Get(domain.KeyShuffleHistory)
	if err != nil {
		h.logger.Warn("shuffle history read failed", "user", userID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		h.logger.Warn("shuffle history is corrupt, ignoring", "user", userID, "error", err)
		return nil
	}
	return ids
}

// limit is never below 10 so a tiny seed limit still remembers something
func (h *HistoryStore) limit() int {
	return max(10, h.seedLimit)
}

// Save stores the most recent entries of ids. When the store rejects the value
// for size it retries with smaller windows, then gives up and deletes the key.
func (h *HistoryStore) Save(userID string, ids []string) {
	ns := store.ForUser(h.kv, userID)
	limit := h.limit()
	arr := lastN(uniqueStrings(ids), limit)

	err := h.put(ns, arr)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		h.logger.Error("shuffle history save failed", "user", userID, "error", err)
		return
	}

	for _, n := range []int{limit * 3 / 4, limit / 2, 20, 10} {
		arr = lastN(arr, n)
		err = h.put(ns, arr)
		if err == nil {
			h.logger.Warn("shuffle history truncated to fit storage", "user", userID, "kept", len(arr))
			return
		}
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			h.logger.Error("shuffle history save failed", "user", userID, "error", err)
			return
		}
	}

	h.logger.Warn("shuffle history does not fit storage, removing", "user", userID)
	if err := ns.Delete(domain.KeyShuffleHistory); err != nil {
		h.logger.Error("shuffle history delete failed", "user", userID, "error", err)
	}
}

// Reset deletes the stored history
func (h *HistoryStore) Reset(userID string) {
	if err := store.ForUser(h.kv, userID).Delete(domain.KeyShuffleHistory); err != nil {
		h.logger.Warn("shuffle history reset failed", "user", userID, "error", err)
	}
}

func (h *HistoryStore) put(ns domain.KV, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return ns.Set(domain.KeyShuffleHistory, data)
}

func lastN(ids []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}
