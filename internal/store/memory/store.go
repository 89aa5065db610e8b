// Package memory provides an in-memory implementation of store.Store used by
// tests and ephemeral runs. Each transaction works on a cloned state that is
// swapped in only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

var _ store.Store = (*Store)(nil)

type state struct {
	seq         int
	tabletTypes map[int]models.TabletType
	products    map[int]models.Product
	receives    map[int]models.Receive
	boxes       map[int]models.Box
	bags        map[int]models.Bag
	submissions map[int]models.Submission
	pos         map[int]models.PurchaseOrder
	lines       map[int]models.POLine
	settings    map[string]models.SystemSetting
	reassigns   []models.ReassignmentLog
}

func newState() state {
	return state{
		tabletTypes: make(map[int]models.TabletType),
		products:    make(map[int]models.Product),
		receives:    make(map[int]models.Receive),
		boxes:       make(map[int]models.Box),
		bags:        make(map[int]models.Bag),
		submissions: make(map[int]models.Submission),
		pos:         make(map[int]models.PurchaseOrder),
		lines:       make(map[int]models.POLine),
		settings:    make(map[string]models.SystemSetting),
	}
}

func (s state) clone() state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.tabletTypes {
		c.tabletTypes[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.receives {
		c.receives[k] = v
	}
	for k, v := range s.boxes {
		c.boxes[k] = v
	}
	for k, v := range s.bags {
		c.bags[k] = v
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.pos {
		c.pos[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	c.reassigns = append([]models.ReassignmentLog(nil), s.reassigns...)
	return c
}

// Store is an in-memory transactional store.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// NewStore constructs an empty store. A nil nowFn uses the wall clock.
func NewStore(nowFn func() time.Time) *Store {
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Store{state: newState(), nowFn: nowFn}
}

// RunInTx executes fn against a cloned state and commits it when fn succeeds.
// Transactions are serialized, which satisfies every row lock a caller asks for.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{state: s.state.clone(), now: s.nowFn}
	if err := fn(t); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

// View executes fn against a snapshot; writes made inside are discarded.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&tx{state: s.state.clone(), now: s.nowFn})
}

// ReassignmentLogs returns a copy of the audit rows written so far.
func (s *Store) ReassignmentLogs() []models.ReassignmentLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ReassignmentLog(nil), s.state.reassigns...)
}

type tx struct {
	state state
	now   func() time.Time
}

func (t *tx) nextID() int {
	t.state.seq++
	return t.state.seq
}

func notFound(entity string, id interface{}) error {
	return &models.NotFoundError{Entity: entity, ID: id}
}

func (t *tx) CreateTabletType(_ context.Context, tt *models.TabletType) error {
	for _, existing := range t.state.tabletTypes {
		if existing.Name == tt.Name {
			return models.NewValidationError("name", fmt.Sprintf("tablet type %q already exists", tt.Name))
		}
	}
	tt.ID = t.nextID()
	tt.CreatedAt = t.now()
	t.state.tabletTypes[tt.ID] = *tt
	return nil
}

func (t *tx) GetTabletType(_ context.Context, id int) (*models.TabletType, error) {
	tt, ok := t.state.tabletTypes[id]
	if !ok {
		return nil, notFound("tablet type", id)
	}
	return &tt, nil
}

func (t *tx) CreateProduct(_ context.Context, p *models.Product) error {
	for _, existing := range t.state.products {
		if existing.Name == p.Name {
			return models.NewValidationError("name", fmt.Sprintf("product %q already exists", p.Name))
		}
	}
	if _, ok := t.state.tabletTypes[p.TabletTypeID]; !ok {
		return notFound("tablet type", p.TabletTypeID)
	}
	p.ID = t.nextID()
	p.CreatedAt = t.now()
	t.state.products[p.ID] = *p
	return nil
}

func (t *tx) GetProductByName(_ context.Context, name string) (*models.Product, error) {
	for _, p := range t.state.products {
		if p.Name == name {
			p.InventoryItemID = t.state.tabletTypes[p.TabletTypeID].InventoryItemID
			return &p, nil
		}
	}
	return nil, notFound("product", name)
}

func (t *tx) CountReceives(_ context.Context, poID int) (int, error) {
	n := 0
	for _, r := range t.state.receives {
		if r.POID == poID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateReceive(_ context.Context, r *models.Receive) error {
	if _, ok := t.state.pos[r.POID]; !ok {
		return notFound("purchase order", r.POID)
	}
	r.ID = t.nextID()
	r.CreatedAt = t.now()
	if r.ReceivedDate.IsZero() {
		r.ReceivedDate = r.CreatedAt
	}
	stored := *r
	stored.Boxes = nil
	t.state.receives[r.ID] = stored
	return nil
}

func (t *tx) GetReceive(_ context.Context, id int) (*models.Receive, error) {
	r, ok := t.state.receives[id]
	if !ok {
		return nil, notFound("receive", id)
	}
	r.PONumber = t.state.pos[r.POID].PONumber
	var boxes []models.Box
	for _, b := range t.state.boxes {
		if b.ReceiveID != id {
			continue
		}
		for _, bag := range t.state.bags {
			if bag.BoxID == b.ID {
				b.Bags = append(b.Bags, bag)
			}
		}
		sort.Slice(b.Bags, func(i, j int) bool { return b.Bags[i].BagNumber < b.Bags[j].BagNumber })
		boxes = append(boxes, b)
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].BoxNumber < boxes[j].BoxNumber })
	r.Boxes = boxes
	return &r, nil
}

func (t *tx) CloseReceive(_ context.Context, id int) error {
	r, ok := t.state.receives[id]
	if !ok {
		return notFound("receive", id)
	}
	if !r.Closed {
		now := t.now()
		r.Closed = true
		r.ClosedAt = &now
		t.state.receives[id] = r
	}
	for bagID, bag := range t.state.bags {
		if t.state.boxes[bag.BoxID].ReceiveID == id {
			bag.Status = models.BagStatusClosed
			t.state.bags[bagID] = bag
		}
	}
	return nil
}

func (t *tx) CreateBox(_ context.Context, b *models.Box) error {
	if _, ok := t.state.receives[b.ReceiveID]; !ok {
		return notFound("receive", b.ReceiveID)
	}
	for _, existing := range t.state.boxes {
		if existing.ReceiveID == b.ReceiveID && existing.BoxNumber == b.BoxNumber {
			return models.NewValidationError("box_number", fmt.Sprintf("box %d already exists in receive %d", b.BoxNumber, b.ReceiveID))
		}
	}
	b.ID = t.nextID()
	b.CreatedAt = t.now()
	stored := *b
	stored.Bags = nil
	t.state.boxes[b.ID] = stored
	return nil
}

func (t *tx) CreateBag(_ context.Context, b *models.Bag) error {
	if _, ok := t.state.boxes[b.BoxID]; !ok {
		return notFound("box", b.BoxID)
	}
	for _, existing := range t.state.bags {
		if existing.BoxID == b.BoxID && existing.BagNumber == b.BagNumber {
			return &models.DuplicateBagError{BoxID: b.BoxID, BagNumber: b.BagNumber}
		}
	}
	b.ID = t.nextID()
	b.CreatedAt = t.now()
	if b.Status == "" {
		b.Status = models.BagStatusAvailable
	}
	t.state.bags[b.ID] = *b
	return nil
}

func (t *tx) candidate(bag models.Bag) models.BagCandidate {
	box := t.state.boxes[bag.BoxID]
	rcv := t.state.receives[box.ReceiveID]
	return models.BagCandidate{
		BagID:        bag.ID,
		BoxID:        box.ID,
		BoxNumber:    box.BoxNumber,
		BagNumber:    bag.BagNumber,
		TabletTypeID: bag.TabletTypeID,
		LabelCount:   bag.LabelCount,
		Status:       bag.Status,
		ReceiveID:    rcv.ID,
		ReceiveName:  rcv.ReceiveName,
		ReceivedDate: rcv.ReceivedDate,
		POID:         rcv.POID,
	}
}

func (t *tx) GetBag(_ context.Context, id int) (*models.BagCandidate, error) {
	bag, ok := t.state.bags[id]
	if !ok {
		return nil, notFound("bag", id)
	}
	c := t.candidate(bag)
	return &c, nil
}

func (t *tx) CloseBag(_ context.Context, id int) error {
	bag, ok := t.state.bags[id]
	if !ok {
		return notFound("bag", id)
	}
	bag.Status = models.BagStatusClosed
	t.state.bags[id] = bag
	return nil
}

func (t *tx) FindBags(_ context.Context, q models.BagQuery) ([]models.BagCandidate, error) {
	var out []models.BagCandidate
	for _, bag := range t.state.bags {
		if bag.BagNumber != q.BagNumber || bag.TabletTypeID != q.TabletTypeID {
			continue
		}
		if !q.IncludeClosed && bag.Status == models.BagStatusClosed {
			continue
		}
		c := t.candidate(bag)
		if c.BoxNumber != q.BoxNumber {
			continue
		}
		if q.POID != nil && c.POID != *q.POID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedDate.Equal(out[j].ReceivedDate) {
			return out[i].ReceivedDate.After(out[j].ReceivedDate)
		}
		if out[i].ReceiveID != out[j].ReceiveID {
			return out[i].ReceiveID > out[j].ReceiveID
		}
		return out[i].BagID > out[j].BagID
	})
	return out, nil
}

func (t *tx) CreateSubmission(_ context.Context, s *models.Submission) error {
	s.ID = t.nextID()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now()
	}
	t.state.submissions[s.ID] = *s
	return nil
}

func (t *tx) GetSubmission(_ context.Context, id int, _ bool) (*models.Submission, error) {
	s, ok := t.state.submissions[id]
	if !ok {
		return nil, notFound("submission", id)
	}
	return &s, nil
}

func (t *tx) UpdateSubmissionBinding(_ context.Context, id int, bagID, poID *int, needsReview bool) error {
	s, ok := t.state.submissions[id]
	if !ok {
		return notFound("submission", id)
	}
	s.BagID = bagID
	s.AssignedPOID = poID
	s.NeedsReview = needsReview
	t.state.submissions[id] = s
	return nil
}

func (t *tx) UpdateSubmissionAssignment(_ context.Context, id int, poID int, verified bool) error {
	s, ok := t.state.submissions[id]
	if !ok {
		return notFound("submission", id)
	}
	s.AssignedPOID = &poID
	s.POAssignmentVerified = verified
	t.state.submissions[id] = s
	return nil
}

func (t *tx) sortedSubmissions(keep func(models.Submission) bool) []models.Submission {
	var out []models.Submission
	for _, s := range t.state.submissions {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tx) ListUnboundSubmissions(_ context.Context) ([]models.Submission, error) {
	return t.sortedSubmissions(func(s models.Submission) bool {
		return s.BagID == nil && !s.POAssignmentVerified
	}), nil
}

func (t *tx) ListNeedsReview(_ context.Context) ([]models.Submission, error) {
	return t.sortedSubmissions(func(s models.Submission) bool { return s.NeedsReview }), nil
}

func (t *tx) ListReconcileInputs(_ context.Context, poID int) ([]models.ReconcileInput, error) {
	var out []models.ReconcileInput
	for _, s := range t.sortedSubmissions(func(models.Submission) bool { return true }) {
		effective := 0
		label := 0
		if s.AssignedPOID != nil {
			effective = *s.AssignedPOID
		}
		if s.BagID != nil {
			if bag, ok := t.state.bags[*s.BagID]; ok {
				c := t.candidate(bag)
				label = c.LabelCount
				if effective == 0 {
					effective = c.POID
				}
			}
		}
		if effective != poID {
			continue
		}
		out = append(out, models.ReconcileInput{
			Submission: s,
			Key:        models.BagKey{POID: poID, ProductName: s.ProductName, BoxBag: s.BoxBagLabel()},
			LabelCount: label,
		})
	}
	return out, nil
}

func (t *tx) CreatePurchaseOrder(_ context.Context, po *models.PurchaseOrder) error {
	for _, existing := range t.state.pos {
		if existing.PONumber == po.PONumber {
			return models.NewValidationError("po_number", fmt.Sprintf("purchase order %q already exists", po.PONumber))
		}
	}
	po.ID = t.nextID()
	po.CreatedAt = t.now()
	po.UpdatedAt = po.CreatedAt
	stored := *po
	stored.Lines = nil
	t.state.pos[po.ID] = stored
	return nil
}

func (t *tx) GetPurchaseOrder(_ context.Context, id int, _ bool) (*models.PurchaseOrder, error) {
	po, ok := t.state.pos[id]
	if !ok {
		return nil, notFound("purchase order", id)
	}
	return &po, nil
}

func (t *tx) CreatePOLine(_ context.Context, line *models.POLine) error {
	if _, ok := t.state.pos[line.POID]; !ok {
		return notFound("purchase order", line.POID)
	}
	line.ID = t.nextID()
	line.UpdatedAt = t.now()
	t.state.lines[line.ID] = *line
	return nil
}

func (t *tx) ListPOLines(_ context.Context, poID int) ([]models.POLine, error) {
	var out []models.POLine
	for _, l := range t.state.lines {
		if l.POID == poID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) GetPOLineForItem(_ context.Context, poID int, inventoryItemID string, _ bool) (*models.POLine, error) {
	lines, _ := t.ListPOLines(context.Background(), poID)
	for _, l := range lines {
		if l.InventoryItemID == inventoryItemID {
			return &l, nil
		}
	}
	return nil, notFound("po line", fmt.Sprintf("%d/%s", poID, inventoryItemID))
}

func (t *tx) UpdatePOLineCounts(_ context.Context, lineID, good, damaged int) error {
	l, ok := t.state.lines[lineID]
	if !ok {
		return notFound("po line", lineID)
	}
	l.GoodCount = good
	l.DamagedCount = damaged
	l.UpdatedAt = t.now()
	t.state.lines[lineID] = l
	return nil
}

func (t *tx) UpdatePOAggregates(_ context.Context, po *models.PurchaseOrder) error {
	stored, ok := t.state.pos[po.ID]
	if !ok {
		return notFound("purchase order", po.ID)
	}
	stored.GoodCount = po.GoodCount
	stored.DamagedCount = po.DamagedCount
	stored.RemainingQuantity = po.RemainingQuantity
	stored.UpdatedAt = t.now()
	t.state.pos[po.ID] = stored
	return nil
}

func (t *tx) CreateReassignmentLog(_ context.Context, entry *models.ReassignmentLog) error {
	entry.ID = t.nextID()
	entry.CreatedAt = t.now()
	t.state.reassigns = append(t.state.reassigns, *entry)
	return nil
}

func (t *tx) GetSetting(_ context.Context, key string) (*models.SystemSetting, error) {
	s, ok := t.state.settings[key]
	if !ok {
		return nil, notFound("setting", key)
	}
	return &s, nil
}

func (t *tx) ListSettings(_ context.Context) ([]*models.SystemSetting, error) {
	keys := make([]string, 0, len(t.state.settings))
	for k := range t.state.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.SystemSetting, 0, len(keys))
	for _, k := range keys {
		s := t.state.settings[k]
		out = append(out, &s)
	}
	return out, nil
}

func (t *tx) UpsertSetting(_ context.Context, key, value, description, updatedBy string) error {
	s, ok := t.state.settings[key]
	if !ok {
		s = models.SystemSetting{ID: t.nextID(), SettingKey: key}
	}
	s.SettingValue = value
	if description != "" {
		s.Description = description
	}
	s.UpdatedBy = updatedBy
	s.UpdatedAt = t.now()
	t.state.settings[key] = s
	return nil
}
