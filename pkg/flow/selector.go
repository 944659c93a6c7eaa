package flow

import "strconv"

// Selector identifies one element on a web page. Exactly one field should be set;
// XPath wins over CSS, CSS over LinkText.
type Selector struct {
	XPath    string `yaml:"xpath"`
	CSS      string `yaml:"css"`
	LinkText string `yaml:"linkText"`
}

// Locator strategy names as used on the wire.
const (
	strategyXPath    = "xpath"
	strategyCSS      = "css selector"
	strategyLinkText = "link text"
)

// Strategy returns the WebDriver locator strategy and value.
func (s Selector) Strategy() (string, string) {
	switch {
	case s.XPath != "":
		return strategyXPath, s.XPath
	case s.CSS != "":
		return strategyCSS, s.CSS
	case s.LinkText != "":
		return strategyLinkText, s.LinkText
	}
	return "", ""
}

// IsEmpty returns true if no locator is set.
func (s Selector) IsEmpty() bool {
	return s.XPath == "" && s.CSS == "" && s.LinkText == ""
}

// Describe returns the locator value prefixed with its kind.
func (s Selector) Describe() string {
	switch {
	case s.XPath != "":
		return s.XPath
	case s.CSS != "":
		return "css=" + s.CSS
	case s.LinkText != "":
		return "link=" + s.LinkText
	}
	return "<empty>"
}

// DescribeQuoted is Describe with the value quoted.
func (s Selector) DescribeQuoted() string {
	switch {
	case s.XPath != "":
		return strconv.Quote(s.XPath)
	case s.CSS != "":
		return "css=" + strconv.Quote(s.CSS)
	case s.LinkText != "":
		return "link=" + strconv.Quote(s.LinkText)
	}
	return "<empty>"
}
