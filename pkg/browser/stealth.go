package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript patches the common headless-Chrome tells: navigator.webdriver,
// an empty plugins/mimeTypes array, missing window.chrome, WebGL vendor
// strings that reveal SwiftShader, and the native-function toString check.
const stealthScript = `
(function() {
    'use strict';

    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    delete Object.getPrototypeOf(navigator).webdriver;

    const mockPlugins = [
        { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1 },
        { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1 },
        { name: 'Native Client', description: '', filename: 'internal-nacl-plugin', length: 2 }
    ];

    const pluginArray = Object.create(PluginArray.prototype);
    mockPlugins.forEach((p, i) => {
        const plugin = Object.create(Plugin.prototype);
        Object.defineProperties(plugin, {
            name: { value: p.name, enumerable: true },
            description: { value: p.description, enumerable: true },
            filename: { value: p.filename, enumerable: true },
            length: { value: p.length, enumerable: true }
        });
        pluginArray[i] = plugin;
        pluginArray[p.name] = plugin;
    });
    Object.defineProperty(pluginArray, 'length', { value: mockPlugins.length });
    Object.defineProperty(pluginArray, 'item', { value: (i) => pluginArray[i] || null });
    Object.defineProperty(pluginArray, 'namedItem', { value: (n) => pluginArray[n] || null });
    Object.defineProperty(pluginArray, 'refresh', { value: () => {} });

    Object.defineProperty(navigator, 'plugins', {
        get: () => pluginArray,
        configurable: true
    });

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['en-US', 'en']),
        configurable: true
    });

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', { value: {}, writable: true, enumerable: true, configurable: false });
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = {
            get id() { return undefined; },
            connect: function() {},
            sendMessage: function() {}
        };
    }

    const originalQuery = Permissions.prototype.query;
    Permissions.prototype.query = function(parameters) {
        if (parameters.name === 'notifications') {
            return Promise.resolve({ state: Notification.permission });
        }
        return originalQuery.call(this, parameters);
    };

    const getParameterProxyHandler = {
        apply: function(target, ctx, args) {
            const param = args[0];
            const result = Reflect.apply(target, ctx, args);
            if (param === 37445) return 'Intel Inc.'; // UNMASKED_VENDOR_WEBGL
            if (param === 37446) return 'Intel Iris OpenGL Engine'; // UNMASKED_RENDERER_WEBGL
            return result;
        }
    };
    try {
        const webglGetParameter = WebGLRenderingContext.prototype.getParameter;
        WebGLRenderingContext.prototype.getParameter = new Proxy(webglGetParameter, getParameterProxyHandler);
    } catch (e) {}
    try {
        const webgl2GetParameter = WebGL2RenderingContext.prototype.getParameter;
        WebGL2RenderingContext.prototype.getParameter = new Proxy(webgl2GetParameter, getParameterProxyHandler);
    } catch (e) {}

    const nativeToStringFunc = Function.prototype.toString;
    Function.prototype.toString = function() {
        if (this === Permissions.prototype.query) {
            return 'function query() { [native code] }';
        }
        return nativeToStringFunc.call(this);
    };

    if (navigator.hardwareConcurrency === 0) {
        Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 4, configurable: true });
    }
    if (navigator.deviceMemory === undefined || navigator.deviceMemory === 0) {
        Object.defineProperty(navigator, 'deviceMemory', { get: () => 8, configurable: true });
    }
})();
`

// stealthExecAllocatorOptions returns Chrome launch flags that reduce the
// surface area headless-detection scripts probe.
func stealthExecAllocatorOptions() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-plugins-discovery", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("enable-features", "NetworkService,NetworkServiceInProcess"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("use-fake-device-for-media-stream", true),
		chromedp.Flag("lang", "en-US,en"),
	}
}

// injectStealthScript returns a chromedp.Action that installs stealthScript
// on every new document in the page, before any page script runs.
func injectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

// captureScreenshotOnError best-effort captures a screenshot for debugging
// a failed fetch. Returns nil if capture itself fails (browser already in
// a bad state).
func captureScreenshotOnError(ctx context.Context) []byte {
	var screenshot []byte
	captureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := chromedp.Run(captureCtx, chromedp.CaptureScreenshot(&screenshot)); err != nil {
		return nil
	}
	return screenshot
}
