// Package transfer drives copy operations on the transfer service: it
// submits a copy, then polls its status ({Initial, Running, Complete,
// Failed}) with a fixed interval and a bounded number of polls.
package transfer
