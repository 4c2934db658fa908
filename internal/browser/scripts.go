package browser

// Every script receives its arguments as plain JSON values. Patterns are
// regular expression sources compiled case-insensitively in the page.

const jsHelpers = `
	const visible = (el) => !!(el.offsetParent || el.getClientRects().length) &&
		getComputedStyle(el).visibility !== 'hidden';
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
`

// jsFirstVisible returns the first visible match or null, so rod keeps
// retrying until the element shows up or the context expires.
const jsFirstVisible = `(sel) => {` + jsHelpers + `
	for (const el of document.querySelectorAll(sel)) {
		if (visible(el)) return el;
	}
	return null;
}`

const jsByLabel = `(src) => {` + jsHelpers + `
	const re = new RegExp(src, 'i');
	const out = [];
	for (const el of document.querySelectorAll('input:not([type="hidden"]), textarea, select')) {
		const names = [el.getAttribute('aria-label')];
		if (el.labels) {
			for (const l of el.labels) names.push(l.textContent);
		}
		const ids = el.getAttribute('aria-labelledby');
		if (ids) {
			for (const id of ids.split(/\s+/)) {
				const n = document.getElementById(id);
				if (n) names.push(n.textContent);
			}
		}
		if (names.some((n) => n && re.test(norm(n)))) out.push(el);
	}
	return out;
}`

// jsByRole matches visible elements from sel by their accessible name.
const jsByRole = `(sel, src) => {` + jsHelpers + `
	const re = new RegExp(src, 'i');
	return Array.from(document.querySelectorAll(sel)).filter((el) => {
		if (!visible(el)) return false;
		const name = el.getAttribute('aria-label') || el.innerText || el.value || el.title;
		return re.test(norm(name));
	});
}`

const (
	linkSelector   = `a[href], [role="link"]`
	buttonSelector = `button, [role="button"], input[type="submit"], input[type="button"]`
)

// jsFindText matches against rendered text only; innerText skips hidden nodes.
const jsFindText = `(src) => {
	const re = new RegExp(src, 'i');
	const m = ((document.body && document.body.innerText) || '').match(re);
	return m ? { found: true, text: m[0] } : { found: false, text: '' };
}`

// jsClearValue empties an input the way a user would, firing the events
// frameworks listen to.
const jsClearValue = `function () {
	this.value = '';
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`
