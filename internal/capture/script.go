package capture

import (
	"encoding/json"
	"fmt"
)

// domBanner is one banner image found in the page, with the href of its
// enclosing anchor.
type domBanner struct {
	Src  string `json:"src"`
	Href string `json:"href"`
	Alt  string `json:"alt"`
}

// bannerScript builds the extraction expression. It descends depth levels of
// same-origin iframes from the top document and collects img elements with
// class bannerClass that sit inside a link.
func bannerScript(depth int, bannerClass string) string {
	class, _ := json.Marshal(bannerClass)
	return fmt.Sprintf(`(() => {
  const depth = %d;
  const selector = "img." + CSS.escape(%s);
  let docs = [document];
  for (let i = 0; i < depth; i++) {
    const next = [];
    for (const doc of docs) {
      for (const frame of doc.querySelectorAll("iframe")) {
        try {
          if (frame.contentDocument) next.push(frame.contentDocument);
        } catch (e) {}
      }
    }
    docs = next;
  }
  const out = [];
  for (const doc of docs) {
    for (const img of doc.querySelectorAll(selector)) {
      const a = img.closest("a");
      if (!img.src || !a || !a.href) continue;
      out.push({src: img.src, href: a.href, alt: img.alt || ""});
    }
  }
  return out;
})()`, depth, class)
}
