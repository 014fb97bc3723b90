package chrome

// The site renders its menus from dynamic class names, so the clicks key off
// aria labels and visible text instead of selectors. Each expression returns
// true only after it actually clicked (or asserted) something, which lets the
// caller poll until the UI has caught up.

const jsLoginGate = `(() => {
	const texts = [...document.querySelectorAll('a,button')].map(el => (el.textContent || '').trim().toLowerCase());
	return texts.some(t => t === 'sign in' || t === 'log in' || t === 'sign up');
})()`

const jsOpenMoreMenu = `(() => {
	const btn = [...document.querySelectorAll('button')].find(b => {
		const label = (b.getAttribute('aria-label') || '').toLowerCase();
		return label.includes('more') && label.includes('option');
	});
	if (!btn) return false;
	btn.click();
	return true;
})()`

var jsClickDownload = clickMenuItemJS("download")

var jsClickWAVEntry = clickMenuItemJS("wav audio")

const jsClickModalDownload = `(() => {
	const btn = [...document.querySelectorAll('[role="dialog"] button, .ReactModalPortal button')]
		.find(b => (b.textContent || '').trim().toLowerCase().startsWith('download') && !b.disabled);
	if (!btn) return false;
	btn.click();
	return true;
})()`

func clickMenuItemJS(text string) string {
	return `(() => {
	const items = [...document.querySelectorAll('[role="menuitem"], [role="menu"] *, [data-radix-collection-item]')];
	const item = items.find(el => (el.textContent || '').trim().toLowerCase() === '` + text + `');
	if (!item) return false;
	item.click();
	return true;
})()`
}
