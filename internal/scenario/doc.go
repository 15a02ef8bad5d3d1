// Package scenario loads replay timelines from YAML.
//
// A scenario file looks like:
//
//	id: dashboard
//	loop: false
//	initial:
//	  siteTreeLines: ["/"]
//	  spiderStats: {pages: 1, requests: 1}
//	timeline:
//	  - delay: 2s          # or 2000 (milliseconds)
//	    label: Spider discovers initial pages
//	    patch:
//	      spiderStats: {pages: 4, requests: 8}
//
// Patches are deep-merged by the replay package: nested mappings merge and
// lists replace. Two scenarios are embedded: "dashboard" plays derived views
// directly and "crawl" plays raw page data for the mock backend.
package scenario
