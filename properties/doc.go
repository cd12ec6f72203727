/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package properties implements the change-tracked property store backing every
// model item.
package properties
