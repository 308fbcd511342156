package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"yaca/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Key layout:
//
//	account:{username}       -> accountRecord (Seq is the registration order)
//	msg:{seq:020d}           -> messageRecord (zero padding keeps lexicographic == insertion order)
//	msgid:{id}               -> msg:{seq} key
const (
	accountPrefix   = "account:"
	messagePrefix   = "msg:"
	messageIDPrefix = "msgid:"
	messageSeqKey   = "seq:msg"
	accountSeqKey   = "seq:account"

	conflictRetries = 5
)

type accountRecord struct {
	Seq          uint64    `json:"seq"`
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
}

type messageRecord struct {
	Seq         uint64    `json:"seq"`
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// BadgerStore is an embedded durable backend.
type BadgerStore struct {
	db         *badger.DB
	seq        *badger.Sequence
	accountSeq *badger.Sequence
}

// OpenBadgerStore opens (or creates) a badger database under dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db)
}

// NewBadgerStore wraps an open database. Close releases the sequences and closes db.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(messageSeqKey), 100)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	accountSeq, err := db.GetSequence([]byte(accountSeqKey), 100)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("account sequence: %w", err), seq.Release())
	}
	return &BadgerStore{db: db, seq: seq, accountSeq: accountSeq}, nil
}

func (s *BadgerStore) SaveAccount(_ context.Context, acc models.Account) (models.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	// A rejected duplicate burns a number; gaps do not affect ordering.
	n, err := s.accountSeq.Next()
	if err != nil {
		return models.Account{}, fmt.Errorf("next account sequence: %w", err)
	}
	rec := toAccountRecord(acc)
	rec.Seq = n
	data, err := json.Marshal(rec)
	if err != nil {
		return models.Account{}, err
	}
	key := []byte(accountPrefix + acc.Username)
	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(key); err == nil {
				return ErrDuplicateAccount
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.Set(key, data)
		})
		// A conflicting commit means another registration touched the same key;
		// the retry observes it and reports the duplicate.
		if errors.Is(err, badger.ErrConflict) && attempt < conflictRetries {
			continue
		}
		break
	}
	if err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

func (s *BadgerStore) FindAccountByUsername(_ context.Context, username string) (models.Account, bool, error) {
	var rec accountRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(accountPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, err
	}
	return rec.toModel(), true, nil
}

// ListAllAccounts returns accounts in registration order, not key order.
func (s *BadgerStore) ListAllAccounts(_ context.Context) ([]models.Account, error) {
	var recs []accountRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(accountPrefix), func(val []byte) error {
			var rec accountRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(recs, func(a, b accountRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	return lo.Map(recs, func(r accountRecord, _ int) models.Account { return r.toModel() }), nil
}

func (s *BadgerStore) SaveMessage(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	n, err := s.seq.Next()
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("next message sequence: %w", err)
	}
	msg.Seq = n + 1
	data, err := json.Marshal(toMessageRecord(msg))
	if err != nil {
		return models.ChatMessage{}, err
	}
	key := messageKey(msg.Seq)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(messageIDPrefix+msg.ID), key)
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

func (s *BadgerStore) ListAllMessages(_ context.Context) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(messagePrefix), func(val []byte) error {
			var rec messageRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			msgs = append(msgs, rec.toModel())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *BadgerStore) FindMessageByID(_ context.Context, id string) (models.ChatMessage, bool, error) {
	var rec messageRecord
	err := s.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte(messageIDPrefix + id))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.ChatMessage{}, false, nil
	}
	if err != nil {
		return models.ChatMessage{}, false, err
	}
	return rec.toModel(), true, nil
}

func (s *BadgerStore) Close() error {
	return errors.Join(s.seq.Release(), s.accountSeq.Release(), s.db.Close())
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, seq))
}

func toAccountRecord(a models.Account) accountRecord {
	return accountRecord{ID: a.ID, Username: a.Username, PasswordHash: a.PasswordHash, DisplayName: a.DisplayName, CreatedAt: a.CreatedAt}
}

func (r accountRecord) toModel() models.Account {
	return models.Account{ID: r.ID, Username: r.Username, PasswordHash: r.PasswordHash, DisplayName: r.DisplayName, CreatedAt: r.CreatedAt}
}

func toMessageRecord(m models.ChatMessage) messageRecord {
	return messageRecord{Seq: m.Seq, ID: m.ID, Author: m.Author, Text: m.Text, DisplayName: m.DisplayName, Timestamp: m.Timestamp}
}

func (r messageRecord) toModel() models.ChatMessage {
	return models.ChatMessage{Seq: r.Seq, ID: r.ID, Author: r.Author, Text: r.Text, DisplayName: r.DisplayName, Timestamp: r.Timestamp}
}
