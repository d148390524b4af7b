package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmoreland/maplecart-backend/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// ItemInfo describes a product configuration being added to the cart,
// including the display data needed while the line only exists locally.
// Stock is the known stock quantity at display time; zero means unknown.
type ItemInfo struct {
	ProductID uint
	ColorID   *uint
	SizeID    *uint
	Quantity  int
	Name      string
	UnitPrice float64
	Stock     int
}

// Manager keeps a local view of the shopper's cart and reconciles it with
// the server. Mutations apply to the local view immediately; the server is
// updated behind the scenes, and any failure rolls the view back to server
// state on the next refresh.
//
// For guests the cart lives entirely in the GuestStore; nothing is sent to
// the server until MergeGuestIntoUser.
type Manager struct {
	client   *Client
	guest    GuestStore
	debounce time.Duration

	mu            sync.Mutex
	authenticated bool
	lines         []Line
	lastErr       error

	// generation guards refreshes: only the newest fetch may install its
	// result, older in-flight fetches are cancelled and discarded.
	generation  uint64
	cancelFetch context.CancelFunc

	// Quantity updates are debounced per line. Only the last value within
	// the window is sent.
	timers  map[Key]*time.Timer
	pending map[Key]int
	updates sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebounce overrides the quantity-update debounce window.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = d
	}
}

func NewManager(client *Client, guest GuestStore, opts ...Option) *Manager {
	m := &Manager{
		client:   client,
		guest:    guest,
		debounce: defaultDebounce,
		timers:   make(map[Key]*time.Timer),
		pending:  make(map[Key]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticated reports whether the manager is operating on a server cart.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// SetAuthenticated switches between guest and server mode without merging,
// for restoring an existing session.
func (m *Manager) SetAuthenticated(authenticated bool) {
	m.mu.Lock()
	m.authenticated = authenticated
	m.mu.Unlock()
}

// Refresh replaces the local view with authoritative state. A refresh
// started while another is in flight cancels the older one; a stale result
// that still arrives is dropped.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if !m.authenticated {
		m.lines = m.guestView()
		m.mu.Unlock()
		return nil
	}

	m.generation++
	gen := m.generation
	if m.cancelFetch != nil {
		m.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	m.cancelFetch = cancel
	m.mu.Unlock()

	lines, err := m.client.GetCart(fetchCtx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		// A newer refresh superseded this one.
		return nil
	}
	if err != nil {
		m.lastErr = err
		return err
	}

	m.lines = lines
	m.lastErr = nil
	return nil
}

// AddItem puts a product configuration in the cart. The local view updates
// immediately; for signed-in shoppers the server call follows, and on
// failure the optimistic change is rolled back by refetching. Quantities
// beyond the known stock are rejected before anything is sent.
func (m *Manager) AddItem(ctx context.Context, info ItemInfo) error {
	if info.Quantity < 1 {
		return &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if info.Stock > 0 && info.Quantity > info.Stock {
		return &ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("only %d in stock", info.Stock),
		}
	}

	m.mu.Lock()
	m.lastErr = nil
	if !m.authenticated {
		if !m.guest.Warned() {
			m.guest.MarkWarned()
			logger.Warn("Guest cart is stored locally and will be lost unless the shopper signs in", nil)
		}
		m.guest.Add(GuestLine{
			ProductID: info.ProductID,
			ColorID:   info.ColorID,
			SizeID:    info.SizeID,
			Quantity:  info.Quantity,
			Name:      info.Name,
			UnitPrice: info.UnitPrice,
		})
		m.lines = m.guestView()
		m.mu.Unlock()
		return nil
	}

	// Optimistic: merge into the matching line or append a provisional one.
	key := LineKey(info.ProductID, info.ColorID, info.SizeID)
	found := false
	for i := range m.lines {
		if m.lineKey(m.lines[i]) == key {
			m.lines[i].Quantity += info.Quantity
			found = true
			break
		}
	}
	if !found {
		m.lines = append(m.lines, Line{
			ProductID: info.ProductID,
			ColorID:   info.ColorID,
			SizeID:    info.SizeID,
			Quantity:  info.Quantity,
			Name:      info.Name,
			UnitPrice: info.UnitPrice,
		})
	}
	m.mu.Unlock()

	canonical, err := m.client.AddItem(ctx, info.ProductID, info.ColorID, info.SizeID, info.Quantity)
	if err != nil {
		m.rollback(ctx)
		m.recordErr(err)
		return err
	}

	m.mu.Lock()
	for i := range m.lines {
		if m.lineKey(m.lines[i]) == key {
			m.lines[i] = *canonical
			break
		}
	}
	m.mu.Unlock()
	return nil
}

// SetQuantity changes a line's quantity in the local view immediately and
// schedules the server update. Rapid successive calls for the same line
// collapse into one request carrying the final value. A quantity of zero
// removes the line; negative quantities are rejected.
func (m *Manager) SetQuantity(key Key, quantity int) error {
	if quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "cannot be negative"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil

	if !m.authenticated {
		for _, gl := range m.guest.Lines() {
			if LineKey(gl.ProductID, gl.ColorID, gl.SizeID) == key {
				m.guest.SetQuantity(gl.ID, quantity)
				m.lines = m.guestView()
				return nil
			}
		}
		return ErrLineNotFound
	}

	idx := -1
	for i := range m.lines {
		if m.lineKey(m.lines[i]) == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrLineNotFound
	}

	if quantity == 0 {
		// Removal is terminal, so it skips the debounce window. Any
		// pending quantity update for the line is dropped.
		lineID := m.lines[idx].ID
		m.lines = append(m.lines[:idx], m.lines[idx+1:]...)
		delete(m.pending, key)
		if timer, ok := m.timers[key]; ok {
			if timer.Stop() {
				m.updates.Done()
			}
			delete(m.timers, key)
		}
		m.updates.Add(1)

		go func() {
			defer m.updates.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.client.RemoveItem(ctx, lineID); err != nil {
				m.rollback(ctx)
				m.recordErr(err)
			}
		}()
		return nil
	}

	m.lines[idx].Quantity = quantity

	m.pending[key] = quantity
	if timer, ok := m.timers[key]; ok {
		if timer.Stop() {
			m.updates.Done()
		}
	}
	m.updates.Add(1)
	m.timers[key] = time.AfterFunc(m.debounce, func() {
		defer m.updates.Done()
		m.flushQuantity(key)
	})
	return nil
}

// flushQuantity sends the latest pending quantity for a line.
func (m *Manager) flushQuantity(key Key) {
	m.mu.Lock()
	quantity, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	delete(m.timers, key)

	var lineID uint
	for i := range m.lines {
		if m.lineKey(m.lines[i]) == key {
			lineID = m.lines[i].ID
			break
		}
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if lineID == 0 {
		// The line vanished between the optimistic edit and the flush;
		// resync instead of guessing.
		m.rollback(ctx)
		return
	}
	if _, err := m.client.UpdateItem(ctx, lineID, quantity); err != nil {
		m.rollback(ctx)
		m.recordErr(err)
	}
}

// Remove deletes a line immediately, cancelling any pending quantity
// update for it.
func (m *Manager) Remove(ctx context.Context, key Key) error {
	m.mu.Lock()
	m.lastErr = nil

	if timer, ok := m.timers[key]; ok {
		if timer.Stop() {
			m.updates.Done()
		}
		delete(m.timers, key)
	}
	delete(m.pending, key)

	if !m.authenticated {
		for _, gl := range m.guest.Lines() {
			if LineKey(gl.ProductID, gl.ColorID, gl.SizeID) == key {
				m.guest.Remove(gl.ID)
				m.lines = m.guestView()
				m.mu.Unlock()
				return nil
			}
		}
		m.mu.Unlock()
		return ErrLineNotFound
	}

	var lineID uint
	idx := -1
	for i := range m.lines {
		if m.lineKey(m.lines[i]) == key {
			lineID = m.lines[i].ID
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrLineNotFound
	}
	m.lines = append(m.lines[:idx], m.lines[idx+1:]...)
	m.mu.Unlock()

	if err := m.client.RemoveItem(ctx, lineID); err != nil {
		m.rollback(ctx)
		m.recordErr(err)
		return err
	}
	return nil
}

// Clear empties the cart.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.lastErr = nil
	for key, timer := range m.timers {
		if timer.Stop() {
			m.updates.Done()
		}
		delete(m.timers, key)
		delete(m.pending, key)
	}
	m.lines = nil

	if !m.authenticated {
		m.guest.Clear()
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.client.ClearCart(ctx); err != nil {
		m.rollback(ctx)
		m.recordErr(err)
		return err
	}
	return nil
}

// MergeGuestIntoUser submits the guest cart to the server after sign-in.
// Lines whose product configuration already exists server-side keep their
// server quantity; only new configurations are added. The guest store is
// cleared on success.
func (m *Manager) MergeGuestIntoUser(ctx context.Context) error {
	m.mu.Lock()
	m.lastErr = nil
	m.mu.Unlock()

	guestLines := m.guest.Lines()

	merged, err := m.client.MergeGuest(ctx, guestLines)
	if err != nil {
		m.recordErr(err)
		return err
	}

	m.guest.Clear()

	m.mu.Lock()
	m.authenticated = true
	m.lines = merged
	m.lastErr = nil
	m.mu.Unlock()

	logger.Info("Guest cart merged into account", map[string]interface{}{
		"guest_lines": len(guestLines),
		"cart_lines":  len(merged),
	})
	return nil
}

// SignOut returns the manager to guest mode with an empty local cart.
func (m *Manager) SignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = false
	m.lines = m.guestView()
}

// Flush sends all pending debounced updates immediately and waits for
// every in-flight reconciliation to finish. Call it before checkout.
func (m *Manager) Flush() {
	m.mu.Lock()
	var due []Key
	for key, timer := range m.timers {
		if timer.Stop() {
			due = append(due, key)
		}
		delete(m.timers, key)
	}
	m.mu.Unlock()

	for _, key := range due {
		m.flushQuantity(key)
		m.updates.Done()
	}
	m.updates.Wait()
}

// Lines returns a copy of the current local view.
func (m *Manager) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

// ItemCount is the total number of units across all lines.
func (m *Manager) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, line := range m.lines {
		count += line.Quantity
	}
	return count
}

// TotalPrice is the sum of unit price times quantity across all lines.
func (m *Manager) TotalPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, line := range m.lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (m *Manager) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines) == 0
}

// Contains reports whether any line holds the given product.
func (m *Manager) Contains(productID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.lines {
		if line.ProductID == productID {
			return true
		}
	}
	return false
}

// Err returns the last error from a background reconciliation, or nil.
// Each new operation clears the previous error before attempting.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) recordErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// rollback discards optimistic state by refetching the server cart.
func (m *Manager) rollback(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		logger.Warn("Cart rollback refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (m *Manager) lineKey(line Line) Key {
	return LineKey(line.ProductID, line.ColorID, line.SizeID)
}

func (m *Manager) guestView() []Line {
	guestLines := m.guest.Lines()
	lines := make([]Line, 0, len(guestLines))
	for _, gl := range guestLines {
		lines = append(lines, Line{
			ProductID: gl.ProductID,
			ColorID:   gl.ColorID,
			SizeID:    gl.SizeID,
			Quantity:  gl.Quantity,
			Name:      gl.Name,
			UnitPrice: gl.UnitPrice,
		})
	}
	return lines
}
