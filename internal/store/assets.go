package store

import (
	"sync"

	"github.com/K-Pomian/synthetify-protocol/internal/domain"
	"github.com/google/btree"
)

const degree = 16

func assetLess(a, b domain.Asset) bool {
	return a.AssetAddress < b.AssetAddress
}

// assetsList holds a list's metadata and its assets ordered by address.
type assetsList struct {
	meta   domain.AssetsList
	assets *btree.BTreeG[domain.Asset]
}

// AssetsListStore is a thread-safe in-memory store for assets lists,
// keyed by list ID.
type AssetsListStore struct {
	mu    sync.RWMutex
	lists map[string]*assetsList
}

// NewAssetsListStore creates an empty AssetsListStore.
func NewAssetsListStore() *AssetsListStore {
	return &AssetsListStore{
		lists: make(map[string]*assetsList),
	}
}

// Create adds an empty list with the metadata of l. Any assets on l are
// ignored; use Update to add them.
func (s *AssetsListStore) Create(l *domain.AssetsList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[l.ID]; exists {
		return &domain.ValidationError{Message: "assets list " + l.ID + " already exists"}
	}
	meta := *l
	meta.Assets = nil
	s.lists[l.ID] = &assetsList{
		meta:   meta,
		assets: btree.NewG[domain.Asset](degree, assetLess),
	}
	return nil
}

// Get returns a snapshot of the list with its assets ordered by address.
// It returns domain.ErrAssetsListNotFound if the list does not exist.
func (s *AssetsListStore) Get(id string) (*domain.AssetsList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[id]
	if !ok {
		return nil, domain.ErrAssetsListNotFound
	}
	return l.snapshot(), nil
}

// GetAsset returns a copy of one asset in a list.
func (s *AssetsListStore) GetAsset(listID, address string) (domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[listID]
	if !ok {
		return domain.Asset{}, domain.ErrAssetsListNotFound
	}
	a, ok := l.assets.Get(domain.Asset{AssetAddress: address})
	if !ok {
		return domain.Asset{}, domain.ErrAssetNotFound
	}
	return a, nil
}

// Update runs fn against a copy-on-write clone of the list. Changes are
// committed only when fn returns nil, so a failing update leaves the list
// untouched.
func (s *AssetsListStore) Update(id string, fn func(tx *AssetsTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[id]
	if !ok {
		return domain.ErrAssetsListNotFound
	}

	tx := &AssetsTx{
		meta:   l.meta,
		assets: l.assets.Clone(),
	}
	if err := fn(tx); err != nil {
		return err
	}

	l.meta = tx.meta
	l.assets = tx.assets
	return nil
}

func (l *assetsList) snapshot() *domain.AssetsList {
	out := l.meta
	out.Assets = make([]domain.Asset, 0, l.assets.Len())
	l.assets.Ascend(func(a domain.Asset) bool {
		out.Assets = append(out.Assets, a)
		return true
	})
	return &out
}

// AssetsTx is a pending change to one assets list.
type AssetsTx struct {
	meta   domain.AssetsList
	assets *btree.BTreeG[domain.Asset]
}

// List returns the list metadata. Changes to it are committed with the tx.
func (tx *AssetsTx) List() *domain.AssetsList {
	return &tx.meta
}

// Len returns the number of assets in the list.
func (tx *AssetsTx) Len() int {
	return tx.assets.Len()
}

// Get returns the asset with the given address.
func (tx *AssetsTx) Get(address string) (domain.Asset, bool) {
	return tx.assets.Get(domain.Asset{AssetAddress: address})
}

// GetByFeed returns the first asset, in address order, priced by feed.
func (tx *AssetsTx) GetByFeed(feed string) (domain.Asset, bool) {
	var found domain.Asset
	var ok bool
	tx.assets.Ascend(func(a domain.Asset) bool {
		if a.FeedAddress == feed {
			found, ok = a, true
			return false
		}
		return true
	})
	return found, ok
}

// Put inserts or replaces the asset with the same address.
func (tx *AssetsTx) Put(a domain.Asset) {
	tx.assets.ReplaceOrInsert(a)
}
