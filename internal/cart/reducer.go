package cart

// ActionType names a cart mutation.
type ActionType string

const (
	ActionAdd            ActionType = "cart/add"
	ActionRemove         ActionType = "cart/remove"
	ActionUpdateQuantity ActionType = "cart/updateQuantity"
	ActionUpdateNote     ActionType = "cart/updateNote"
	ActionClear          ActionType = "cart/clear"
)

// Action is a cart mutation. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType
	Item     LineItem
	Ref      string
	Quantity int
	Note     string
}

// State is the ordered list of line items; insertion order is display order.
type State struct {
	Items []LineItem `json:"items"`
}

// Len returns the number of distinct line items.
func (s State) Len() int { return len(s.Items) }

// AddToCart builds the add action for item.
func AddToCart(item LineItem) Action { return Action{Type: ActionAdd, Item: item} }

// RemoveFromCart builds the remove action for ref.
func RemoveFromCart(ref string) Action { return Action{Type: ActionRemove, Ref: ref} }

// UpdateQuantity builds the quantity action for ref.
func UpdateQuantity(ref string, quantity int) Action {
	return Action{Type: ActionUpdateQuantity, Ref: ref, Quantity: quantity}
}

// UpdateNote builds the note action for ref.
func UpdateNote(ref, note string) Action {
	return Action{Type: ActionUpdateNote, Ref: ref, Note: note}
}

// ClearCart builds the clear action.
func ClearCart() Action { return Action{Type: ActionClear} }

// Reduce applies a to state and returns the new state. The input is never
// modified. Unknown actions return the state unchanged.
func Reduce(state State, a Action) State {
	switch a.Type {
	case ActionAdd:
		return add(state, a.Item)
	case ActionRemove:
		out := make([]LineItem, 0, len(state.Items))
		for _, item := range state.Items {
			if !item.Matches(a.Ref) {
				out = append(out, item)
			}
		}
		return State{Items: out}
	case ActionUpdateQuantity:
		qty := clampQuantity(a.Quantity)
		return mapMatching(state, a.Ref, func(li LineItem) LineItem {
			li.Quantity = qty
			return li.reprice()
		})
	case ActionUpdateNote:
		return mapMatching(state, a.Ref, func(li LineItem) LineItem {
			li.Note = a.Note
			return li
		})
	case ActionClear:
		return State{Items: []LineItem{}}
	default:
		return state
	}
}

func add(state State, incoming LineItem) State {
	incoming = normalize(incoming)
	out := make([]LineItem, len(state.Items), len(state.Items)+1)
	copy(out, state.Items)
	for i, existing := range out {
		if existing.LineID == incoming.LineID {
			existing.Quantity = clampQuantity(clampQuantity(existing.Quantity) + incoming.Quantity)
			out[i] = existing.reprice()
			return State{Items: out}
		}
	}
	return State{Items: append(out, incoming)}
}

func mapMatching(state State, ref string, fn func(LineItem) LineItem) State {
	out := make([]LineItem, len(state.Items))
	for i, item := range state.Items {
		if item.Matches(ref) {
			item = fn(item)
		}
		out[i] = item
	}
	return State{Items: out}
}

// Settle subtracts the billed snapshot from current. Lines added or topped up
// after the snapshot was taken stay in the cart; an unchanged cart settles to
// empty.
func Settle(current, billed State) State {
	billedQty := make(map[string]int, len(billed.Items))
	for _, li := range billed.Items {
		billedQty[li.LineID] += li.Quantity
	}
	out := make([]LineItem, 0, len(current.Items))
	for _, li := range current.Items {
		if q, ok := billedQty[li.LineID]; ok {
			li.Quantity -= q
			if li.Quantity <= 0 {
				continue
			}
			li = li.reprice()
		}
		out = append(out, li)
	}
	return State{Items: out}
}
