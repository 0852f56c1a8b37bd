package chat

// Message is one outbound chat message. The concrete types marshal to the
// platform's message JSON.
type Message interface {
	messageType() string
}

type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewText(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

func (TextMessage) messageType() string { return "text" }

type FlexMessage struct {
	Type     string   `json:"type"`
	AltText  string   `json:"altText"`
	Contents Carousel `json:"contents"`
}

func NewFlexCarousel(altText string, bubbles []Bubble) FlexMessage {
	return FlexMessage{
		Type:     "flex",
		AltText:  altText,
		Contents: Carousel{Type: "carousel", Contents: bubbles},
	}
}

func (FlexMessage) messageType() string { return "flex" }

type Carousel struct {
	Type     string   `json:"type"`
	Contents []Bubble `json:"contents"`
}

type Bubble struct {
	Type   string    `json:"type"`
	Size   string    `json:"size,omitempty"`
	Body   *FlexNode `json:"body,omitempty"`
	Footer *FlexNode `json:"footer,omitempty"`
}

// FlexNode is a single flex component (box, text or image). One struct with
// omitempty fields keeps the card builder free of per-component types.
type FlexNode struct {
	Type            string     `json:"type"`
	Layout          string     `json:"layout,omitempty"`
	Contents        []FlexNode `json:"contents,omitempty"`
	Text            string     `json:"text,omitempty"`
	URL             string     `json:"url,omitempty"`
	Size            string     `json:"size,omitempty"`
	Color           string     `json:"color,omitempty"`
	Weight          string     `json:"weight,omitempty"`
	Align           string     `json:"align,omitempty"`
	Wrap            bool       `json:"wrap,omitempty"`
	Margin          string     `json:"margin,omitempty"`
	Height          string     `json:"height,omitempty"`
	AspectRatio     string     `json:"aspectRatio,omitempty"`
	AspectMode      string     `json:"aspectMode,omitempty"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
	BorderColor     string     `json:"borderColor,omitempty"`
	BorderWidth     string     `json:"borderWidth,omitempty"`
	CornerRadius    string     `json:"cornerRadius,omitempty"`
	PaddingAll      string     `json:"paddingAll,omitempty"`
	Position        string     `json:"position,omitempty"`
	OffsetBottom    string     `json:"offsetBottom,omitempty"`
	OffsetStart     string     `json:"offsetStart,omitempty"`
	OffsetEnd       string     `json:"offsetEnd,omitempty"`
	JustifyContent  string     `json:"justifyContent,omitempty"`
	AlignItems      string     `json:"alignItems,omitempty"`
	Action          *Action    `json:"action,omitempty"`
}

type Action struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Data  string `json:"data,omitempty"`
	Text  string `json:"text,omitempty"`
	URI   string `json:"uri,omitempty"`
}

type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}
