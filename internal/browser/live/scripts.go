// internal/browser/live/scripts.go
package live

// Function bodies passed to Runtime.callFunctionOn with the element as this.
// Arguments are embedded as JSON literals through fmt verbs.
const (
	jsQueryAll = `function() { return Array.from(this.querySelectorAll(%s)); }`
	jsClosest  = `function() { return this.closest(%s); }`
	jsParent   = `function() { return this.parentElement; }`
	jsText     = `function() { return this.innerText || this.textContent || ""; }`
	jsLength   = `function() { return this.length; }`
	jsIndex    = `function() { return this[%d]; }`

	jsAttribute = `function() {
	const name = %s;
	return { present: this.hasAttribute(name), value: this.getAttribute(name) || "" };
}`

	jsChecked = `function() {
	const checkable = (el) => el && el.tagName === "INPUT" && (el.type === "radio" || el.type === "checkbox");
	let ctrl = checkable(this) ? this : null;
	if (!ctrl && this.tagName === "LABEL" && checkable(this.control)) ctrl = this.control;
	if (!ctrl) ctrl = this.querySelector('input[type="radio"], input[type="checkbox"]');
	if (ctrl) return ctrl.checked;
	return this.getAttribute("aria-checked") === "true";
}`

	jsScroll = `function() {
	this.scrollIntoView({ block: "center", inline: "center", behavior: "instant" });
	return true;
}`

	jsScriptClick = `function() {
	if (this.disabled) return false;
	this.click();
	return true;
}`

	// jsGeometry reports the element center in viewport coordinates and
	// whether a pointer at that point would reach the element.
	jsGeometry = `function() {
	const r = this.getBoundingClientRect();
	const s = getComputedStyle(this);
	const x = r.left + r.width / 2, y = r.top + r.height / 2;
	const visible = s.visibility !== "hidden" && s.display !== "none" &&
		parseFloat(s.opacity || "1") > 0 && s.pointerEvents !== "none" &&
		r.width > 0 && r.height > 0;
	const hitEl = visible ? document.elementFromPoint(x, y) : null;
	const hit = !!hitEl && (hitEl === this || this.contains(hitEl) || hitEl.contains(this) ||
		(this.labels && Array.from(this.labels).some((l) => l.contains(hitEl))));
	return { x: x, y: y, visible: visible, hit: hit };
}`

	jsForceSelect = `function() {
	const checkable = (el) => el && el.tagName === "INPUT" && (el.type === "radio" || el.type === "checkbox");
	let ctrl = checkable(this) ? this : null;
	if (!ctrl && this.tagName === "LABEL" && checkable(this.control)) ctrl = this.control;
	if (!ctrl) ctrl = this.querySelector('input[type="radio"], input[type="checkbox"]');
	if (!ctrl) return false;
	const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, "checked").set;
	setter.call(ctrl, true);
	ctrl.dispatchEvent(new Event("input", { bubbles: true }));
	ctrl.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
}`

	jsClearField = `function() {
	const isField = this.tagName === "TEXTAREA" ||
		(this.tagName === "INPUT" && !["radio", "checkbox", "button", "submit", "hidden"].includes(this.type));
	if (!isField && !this.isContentEditable) return false;
	this.focus();
	if (this.isContentEditable) {
		this.textContent = "";
	} else {
		const proto = this.tagName === "TEXTAREA" ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		Object.getOwnPropertyDescriptor(proto, "value").set.call(this, "");
	}
	this.dispatchEvent(new Event("input", { bubbles: true }));
	return true;
}`

	jsCommitField = `function() {
	this.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
}`

	// Page level expressions for Runtime.evaluate.
	jsDocQueryAll = `Array.from(document.querySelectorAll(%s))`
	jsDocByID     = `document.getElementById(%s)`
	jsDocExists   = `!!document.querySelector(%s)`
)
