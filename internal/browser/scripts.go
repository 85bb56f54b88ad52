package browser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/fortuna/headshot/internal/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// bindingName is the page function that forwards events to Go.
const bindingName = "__headshotNotify"

// registryJS keeps a stable id per pitch element for the page's lifetime.
// Elements are held weakly so the page can drop them freely.
const registryJS = `
window.__headshotSlots = window.__headshotSlots || {seq: 0, byId: new Map(), ids: new WeakMap()};
`

// snapshotJS lists pitch elements with the fields the engine reads.
var snapshotJS = registryJS + fmt.Sprintf(`
(() => {
  const reg = window.__headshotSlots;
  return Array.from(document.querySelectorAll(%q)).map((el) => {
    let id = reg.ids.get(el);
    if (id === undefined) {
      id = ++reg.seq;
      reg.ids.set(el, id);
      reg.byId.set(id, new WeakRef(el));
    }
    const name = el.querySelector(%q);
    const img = el.querySelector(%q);
    return {
      id: id,
      has_name: !!name,
      name: name ? name.textContent.trim() : "",
      has_image: !!img,
      has_team: !!img && img.hasAttribute("alt"),
      team: img ? (img.getAttribute("alt") || "").trim() : "",
      src: img ? (img.getAttribute("src") || "") : "",
      srcset: img ? (img.getAttribute("srcset") || "") : "",
    };
  });
})()
`, dom.PitchElementSelector, dom.ElementNameSelector, dom.ShirtSelector)

// connectedJS takes a slot id.
const connectedJS = `
((id) => {
  const ref = window.__headshotSlots && window.__headshotSlots.byId.get(id);
  const el = ref && ref.deref();
  return !!(el && el.isConnected);
})`

// applyJS takes a slot id and the patch. The comparison with the live
// attributes happens in the same task as the write.
var applyJS = fmt.Sprintf(`
((id, p) => {
  const ref = window.__headshotSlots && window.__headshotSlots.byId.get(id);
  const el = ref && ref.deref();
  if (!el || !el.isConnected) return "detached";
  const img = el.querySelector(%[1]q);
  if (!img) return "detached";
  if (img.getAttribute("src") === p.src && (img.getAttribute("srcset") || "") === p.srcset) return "current";
  img.onerror = () => {
    img.onerror = img.onload = null;
    img.setAttribute("srcset", p.revert_srcset);
    window[%[2]q](JSON.stringify({type: "imgerror", slot: id, gen: p.gen}));
  };
  img.onload = () => {
    img.onerror = img.onload = null;
    window[%[2]q](JSON.stringify({type: "imgload", slot: id, gen: p.gen}));
  };
  img.setAttribute("src", p.src);
  img.setAttribute("srcset", p.srcset);
  img.setAttribute("sizes", p.sizes);
  img.setAttribute("style", p.style);
  return "written";
})`, dom.ShirtSelector, bindingName)

// observerJS installs the single body observer. Records are flattened to the
// facts the Go side needs to judge relevance.
var observerJS = fmt.Sprintf(`
(() => {
  if (window.__headshotObserver) return false;
  const pitch = %q;
  const cls = %q;
  const isPitch = (n) => n.nodeType === 1 && ((n.getAttribute("class") || "").includes(cls) || !!n.querySelector(pitch));
  const within = (n) => {
    const parent = n.parentElement;
    return !!(parent && parent.closest(pitch));
  };
  const describe = (n) => ({pitch: isPitch(n), inside: within(n)});
  const start = () => {
    window.__headshotObserver = new MutationObserver((records) => {
      window[%q](JSON.stringify({
        type: "mutations",
        records: records.map((r) => ({
          kind: r.type,
          attribute: r.attributeName || "",
          target: describe(r.target),
          added: Array.from(r.addedNodes).map(describe),
          removed: Array.from(r.removedNodes).map((n) => ({pitch: isPitch(n), inside: false})),
        })),
      }));
    });
    window.__headshotObserver.observe(document.body, {
      childList: true,
      subtree: true,
      attributes: true,
      attributeFilter: %s,
      characterData: true,
    });
  };
  if (document.body) start(); else document.addEventListener("DOMContentLoaded", start, {once: true});
  return true;
})()
`, dom.PitchElementSelector, dom.PitchElementClass, bindingName, mustJSON(dom.ObservedAttributes))

// styleJS replaces the pitch card style element with the given rule.
const styleJS = `
((css) => {
  let el = document.getElementById("headshot-pitch-card");
  if (!css) { if (el) el.remove(); return; }
  if (!el) {
    el = document.createElement("style");
    el.id = "headshot-pitch-card";
    (document.head || document.documentElement).appendChild(el);
  }
  el.textContent = css;
})`

// call renders fn(args...) with JSON-encoded arguments.
func call(fn string, args ...any) (string, error) {
	expr := "(" + fn + ")("
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encoding argument %d: %w", i, err)
		}
		if i > 0 {
			expr += ","
		}
		expr += string(b)
	}
	return expr + ")", nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
