package scroll

import "github.com/go-rod/rod"

// PageProber adapts a rod page to the Prober interface. All calls assume
// the page is currently focused; the caller holds the session gate.
type PageProber struct {
	page     *rod.Page
	selector string
}

// NewPageProber wraps a focused rod page. selector locates listing cards.
func NewPageProber(page *rod.Page, selector string) *PageProber {
	return &PageProber{page: page, selector: selector}
}

func (p *PageProber) ScrollHeight() (float64, error) {
	res, err := p.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (p *PageProber) Offset() (float64, error) {
	res, err := p.page.Eval(`() => window.pageYOffset`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (p *PageProber) ScrollTo(y float64) error {
	_, err := p.page.Eval(`(y) => window.scrollTo({top: y, behavior: "smooth"})`, y)
	return err
}

func (p *PageProber) Count() (int, error) {
	res, err := p.page.Eval(`(sel) => document.querySelectorAll(sel).length`, p.selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}
