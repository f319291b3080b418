package types

// Chat turn roles as supplied by the storefront.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context,omitempty"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Type     string `json:"type"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatContext is the storefront state the widget sends along with each message.
// Every field may be missing; missing fields read as empty.
type ChatContext struct {
	ProductCount int          `json:"productCount"`
	Categories   []string     `json:"categories,omitempty"`
	Cart         []CartItem   `json:"cart,omitempty"`
	Viewed       []ViewedItem `json:"viewed,omitempty"`
	Orders       []Order      `json:"orders,omitempty"`
	Page         string       `json:"page,omitempty"`
	History      []ChatTurn   `json:"history,omitempty"`
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CartItem struct {
	ProductID int     `json:"productId,omitempty"`
	Slug      string  `json:"slug,omitempty"`
	Title     string  `json:"title"`
	Price     float64 `json:"price,omitempty"`
	Qty       int     `json:"qty"`
}

type ViewedItem struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	ViewedAt string `json:"viewedAt,omitempty"`
}

type OrderItem struct {
	Slug  string  `json:"slug"`
	Title string  `json:"title"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

type Order struct {
	ID        string      `json:"id"`
	Email     string      `json:"email,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Items     []OrderItem `json:"items,omitempty"`
	Total     float64     `json:"total"`
	Status    string      `json:"status"`
	CreatedAt string      `json:"createdAt"`
}

// Policy is one immutable store policy document.
type Policy struct {
	Key     string `json:"key" yaml:"key"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Product is the recommendation view of a catalog entry.
type Product struct {
	ID          int     `json:"id" db:"id"`
	Slug        string  `json:"slug" db:"slug"`
	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	Category    string  `json:"category" db:"category"`
	Price       float64 `json:"price" db:"price"`
	Inventory   int     `json:"inventory" db:"inventory"`
	Featured    bool    `json:"featured" db:"featured"`
}

// The helpers below let the pipeline read a possibly-nil context without faulting.

func (c *ChatContext) Turns() []ChatTurn {
	if c == nil {
		return nil
	}
	return c.History
}

func (c *ChatContext) OrderList() []Order {
	if c == nil {
		return nil
	}
	return c.Orders
}

func (c *ChatContext) CategoryList() []string {
	if c == nil {
		return nil
	}
	return c.Categories
}
